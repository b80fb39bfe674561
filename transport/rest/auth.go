package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

const (
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"
)

type (
	userKey  struct{}
	matchKey struct{}
)

// identify reads the caller from the identity headers set by the fronting proxy.
// Requests without a user id are rejected.
func (that *handlers) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		if userID == "" {
			writeMessage(w, http.StatusUnauthorized, headerUserID+" header is required")
			return
		}

		user := entity.User{
			ID:   userID,
			Name: r.Header.Get(headerUserName),
		}
		if user.Name == "" {
			user.Name = user.ID
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func userFrom(ctx context.Context) entity.User {
	user, _ := ctx.Value(userKey{}).(entity.User)
	return user
}

// roomMember lets through only the users seated in the {id} match. Anyone else gets
// the same 404 as for a missing room.
func (that *handlers) roomMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		match, err := that.rooms.GetMatch(ctx, id)
		if err != nil {
			that.fail(w, r, "roomMember", err)
			return
		}

		if !match.HasUser(userFrom(ctx).ID) {
			writeError(w, fmt.Errorf("%w: %s", apperror.ErrMatchNotFound, id))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, matchKey{}, match)))
	})
}

func matchFrom(ctx context.Context) *entity.Match {
	match, _ := ctx.Value(matchKey{}).(*entity.Match)
	return match
}
