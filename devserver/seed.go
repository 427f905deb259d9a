package devserver

import (
	"fmt"

	"github.com/jrsteele09/go-moviezone-client/internal/utils"
	"github.com/jrsteele09/go-moviezone-client/users"
)

// Seeded accounts
const (
	DemoUsername  = "demo"
	DemoEmail     = "demo@moviezone.local"
	AdminUsername = "admin"
	AdminEmail    = "admin@moviezone.local"
)

type sampleMovie struct {
	id          int64
	title       string
	description string
	releaseDate string
}

var sampleCatalog = []sampleMovie{
	{1, "The Shawshank Redemption", "Two imprisoned men bond over a number of years.", "1994-09-23"},
	{2, "Spirited Away", "A girl wanders into a world ruled by gods and witches.", "2001-07-20"},
	{3, "Mad Max: Fury Road", "A woman rebels against a tyrannical ruler in a desert wasteland.", "2015-05-15"},
	{123, "Heat", "A group of professional bank robbers and the detective hunting them.", "1995-12-15"},
}

// seed creates the demo user, a staff user sharing its password and, when
// configured, the sample catalog.
func (s *Server) seed(cfg Config) error {
	password := cfg.GetDemoPassword()
	if password == "" {
		return nil
	}
	for _, u := range []users.User{
		{Username: DemoUsername, Email: DemoEmail, FirstName: "Demo", LastName: "User"},
		{Username: AdminUsername, Email: AdminEmail, FirstName: "Admin", IsStaff: true},
	} {
		if _, err := s.userRepo.GetByUsername(u.Username); err == nil {
			continue
		}
		hash, err := users.HashPassword(password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		u.DateJoined = s.now().UTC()
		if err := s.userRepo.Create(&u); err != nil {
			return fmt.Errorf("create %s: %w", u.Username, err)
		}
	}

	if !cfg.GetSeedCatalog() {
		return nil
	}
	for _, m := range sampleCatalog {
		s.catalog.AddMovie(m.id, MovieFields{
			Title:       utils.Ptr(m.title),
			Description: utils.Ptr(m.description),
			ReleaseDate: utils.Ptr(m.releaseDate),
		})
	}
	return nil
}
