package model

type AuthPersistence string

const (
	AuthPersistenceLocal   AuthPersistence = "LOCAL"
	AuthPersistenceSession AuthPersistence = "SESSION"
	AuthPersistenceNone    AuthPersistence = "NONE"
)

func (a AuthPersistence) Valid() bool {
	switch a {
	case AuthPersistenceLocal, AuthPersistenceSession, AuthPersistenceNone:
		return true
	}
	return false
}

// Settings are the client-facing switches of a deployment.
type Settings struct {
	AuthPersistence AuthPersistence `json:"auth_persistence"`
}
