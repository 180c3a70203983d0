package server

import (
	"context"
	"time"

	"github.com/arklight/sessiond/msoauth"
	"github.com/arklight/sessiond/sessions"
	"github.com/arklight/sessiond/users"
	"github.com/rs/zerolog/log"
)

const hydrateTimeout = 15 * time.Second

// hydrateUser populates the user store from the provider profile once a
// session authenticates. It runs off the request path; failures only cost
// the profile, never the authentication.
func (s *Server) hydrateUser(session *sessions.Session, td sessions.TokenData) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), hydrateTimeout)
		defer cancel()

		me, err := s.graphClient.Me(ctx, td.AccessToken)
		if err != nil {
			log.Warn().Err(err).Msg("user hydration failed")
			// The token itself still names the principal.
			if id, principal := msoauth.TokenIdentity(td.AccessToken); id != "" {
				u := s.newUser(id)
				u.PrincipalName = principal
				s.users.Upsert(u)
				session.SetUserID(u.ID)
				s.sessions.Persist(session)
			}
			return
		}

		u := s.newUser(me.ID)
		u.DisplayName = me.DisplayName
		u.GivenName = me.GivenName
		u.Surname = me.Surname
		u.Mail = me.Mail
		u.JobTitle = me.JobTitle
		u.OfficeLocation = me.OfficeLocation
		u.PreferredLanguage = me.PreferredLanguage
		u.PrincipalName = me.UserPrincipalName
		s.users.Upsert(u)

		session.SetUserID(u.ID)
		s.sessions.Persist(session)
		log.Info().Str("user_id", u.ID).Str("principal", u.PrincipalName).Msg("user hydrated")
	}()
}

// newUser builds a replacement record for Upsert rather than mutating the
// shared stored entry in place, preserving the original join time.
func (s *Server) newUser(id string) *users.User {
	u := s.userFactory(id)
	if existing, ok := s.users.Get(id); ok {
		u.CreatedAt = existing.CreatedAt
	}
	return u
}
