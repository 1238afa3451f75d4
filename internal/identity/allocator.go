package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rohits-web03/collab/internal/models"
	"github.com/rohits-web03/collab/internal/repositories"
)

const defaultUsernameBase = "user"

// UsernameBase strips all whitespace from a display name and lowercases it.
func UsernameBase(displayName string) string {
	base := strings.ToLower(strings.Join(strings.Fields(displayName), ""))
	if base == "" {
		return defaultUsernameBase
	}
	return base
}

func (e *Engine) usernameCandidate(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d%s", base, e.now().UnixMilli(), e.suffix())
}

// randomSuffix keeps retries within the same millisecond from colliding.
func randomSuffix() string {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}

// createWithUsername inserts user under the first free candidate derived from
// displayName. Availability is never checked up front: a taken name surfaces
// as ErrDuplicateUsername from Create and the next candidate is tried.
func (e *Engine) createWithUsername(ctx context.Context, user *models.User, displayName string) error {
	base := UsernameBase(displayName)
	for attempt := 0; attempt < e.maxUsernameAttempts; attempt++ {
		user.Username = e.usernameCandidate(base, attempt)
		err := e.store.Create(ctx, user)
		if !errors.Is(err, repositories.ErrDuplicateUsername) {
			return err
		}
		e.logger.DebugContext(ctx, "username taken", "username", user.Username, "attempt", attempt+1)
	}

	e.logger.ErrorContext(ctx, "username allocation exhausted",
		"base", base,
		"attempts", e.maxUsernameAttempts,
	)
	return ErrAllocationFailed
}
