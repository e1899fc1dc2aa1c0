package gatekeeper

import (
	"encoding/json"
	"net/http"
)

// CallbackHandler returns an http.HandlerFunc for the front end's
// /auth/callback and /auth/error pages. gatekeeper redirects there with either
// token and user, or message and code.
func CallbackHandler(
	onSuccess func(session *Session, w http.ResponseWriter, r *http.Request),
	onError func(err error, w http.ResponseWriter, r *http.Request),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if msg := q.Get("message"); msg != "" || q.Get("code") != "" {
			onError(&Error{Code: q.Get("code"), Message: msg}, w, r)
			return
		}

		token := q.Get("token")
		if token == "" {
			onError(&Error{Code: "missing_token", Message: "missing token parameter"}, w, r)
			return
		}

		var user User
		if err := json.Unmarshal([]byte(q.Get("user")), &user); err != nil {
			onError(&Error{Message: "invalid user parameter"}, w, r)
			return
		}

		onSuccess(&Session{Token: token, User: user, State: q.Get("state")}, w, r)
	}
}
