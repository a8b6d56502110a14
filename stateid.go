package totpgate

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/authsteps/totpgate/internal"
)

// StateID is the decoded form of the opaque identifier the challenge
// endpoint receives. ID locates the suspended transaction in the store;
// ReturnURL is the embedded post-challenge navigation hint and MUST pass the
// RedirectPolicy before any use.
type StateID struct {
	ID        string
	ReturnURL string
}

// generateStateID mints a fresh identifier in the configured format and
// returns both the wire form handed to the user agent and the bare store id.
func generateStateID(cfg StateIDConfig, returnURL string) (wire string, id string, err error) {
	switch cfg.Format {
	case StateIDUUID:
		id = uuid.NewString()
	default:
		sid, rerr := internal.NewStateID()
		if rerr != nil {
			return "", "", rerr
		}
		id = sid.String()
	}

	if cfg.Format == StateIDSigned {
		claims := jwt.MapClaims{"sid": id}
		if returnURL != "" {
			claims["rurl"] = returnURL
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, serr := token.SignedString(cfg.SigningKey)
		if serr != nil {
			return "", "", serr
		}
		return signed, id, nil
	}

	wire = id
	if returnURL != "" {
		wire = id + ":" + returnURL
	}
	return wire, id, nil
}

// parseStateID decodes a wire identifier. For the signed format an invalid
// or tampered token fails here, before any store lookup.
func parseStateID(cfg StateIDConfig, wire string) (StateID, error) {
	if wire == "" {
		return StateID{}, ErrStateIDMissing
	}

	if cfg.Format == StateIDSigned {
		token, err := jwt.Parse(wire, func(*jwt.Token) (any, error) {
			return cfg.SigningKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return StateID{}, fmt.Errorf("%w: %v", ErrStateIDInvalid, err)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return StateID{}, ErrStateIDInvalid
		}
		id, _ := claims["sid"].(string)
		if id == "" {
			return StateID{}, ErrStateIDInvalid
		}
		rurl, _ := claims["rurl"].(string)
		return StateID{ID: id, ReturnURL: rurl}, nil
	}

	id, rurl, _ := strings.Cut(wire, ":")
	if id == "" {
		return StateID{}, ErrStateIDInvalid
	}
	return StateID{ID: id, ReturnURL: rurl}, nil
}
