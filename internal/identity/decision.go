package identity

import "github.com/rohits-web03/collab/internal/models"

type outcome int

const (
	outcomeReject outcome = iota
	outcomeVerifyPassword
	outcomeAccept
)

type methodPair struct {
	registered models.AuthMethod
	attempted  models.AuthMethod
}

// decisions covers every (registered, attempted) combination for an email
// that already exists. Mixing methods is always rejected, never merged.
var decisions = map[methodPair]outcome{
	{models.AuthMethodLocal, models.AuthMethodLocal}:   outcomeVerifyPassword,
	{models.AuthMethodLocal, models.AuthMethodGoogle}:  outcomeReject,
	{models.AuthMethodGoogle, models.AuthMethodLocal}:  outcomeReject,
	{models.AuthMethodGoogle, models.AuthMethodGoogle}: outcomeAccept,
}

func decide(registered, attempted models.AuthMethod) outcome {
	if o, ok := decisions[methodPair{registered, attempted}]; ok {
		return o
	}
	return outcomeReject
}
