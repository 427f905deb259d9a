package users

// UserRepo stores accounts of the development backend.
type UserRepo interface {
	Create(user *User) error // assigns ID and DateJoined; fails on a duplicate username
	GetByID(id int64) (*User, error)
	GetByUsername(username string) (*User, error)
	GetByEmail(email string) (*User, error)
	SetPassword(id int64, passwordHash string) error
	List(offset, limit int) ([]*User, error)
}
