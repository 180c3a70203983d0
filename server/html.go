package server

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/arklight/sessiond/sessions"
	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

// redirectPageTmpl is the interstitial shown while sending the browser to
// the identity provider. Meta refresh plus a manual link, so it works with
// and without script.
var redirectPageTmpl = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Redirecting to sign-in...</title>
    <meta http-equiv="refresh" content="0;url={{.TargetURL}}">
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; background: #f5f5f5; }
        .container { background: white; padding: 30px; border-radius: 8px; max-width: 400px; margin: 0 auto;
                     box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
        a { color: #0078d4; text-decoration: none; }
    </style>
</head>
<body>
    <div class="container">
        <h2>Redirecting to sign-in</h2>
        <p>If you are not redirected automatically, <a href="{{.TargetURL}}">click here</a>.</p>
    </div>
</body>
</html>
`))

// successPageTmpl is shown once the callback completes the exchange.
var successPageTmpl = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Login Successful</title>
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; background: #f5f5f5; }
        .container { background: white; padding: 30px; border-radius: 8px; max-width: 400px; margin: 0 auto;
                     box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
        h2 { color: #28a745; }
        a { color: #0078d4; text-decoration: none; }
    </style>
</head>
<body>
    <div class="container">
        <h2>Login Successful</h2>
        <p>You have been authenticated.</p>
        <p><a href="{{.HomeURL}}">Return to the application</a></p>
    </div>
</body>
</html>
`))

// redirectPageHandler halts the request with the interstitial pointing at
// the provider authorization URL.
func (s *Server) redirectPageHandler(w http.ResponseWriter, targetURL string) {
	w.Header().Set("Content-Type", contentTypeHTML)
	data := struct{ TargetURL string }{TargetURL: targetURL}
	if err := redirectPageTmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("render redirect page")
	}
}

// loginSuccessHandler renders the authenticated-success page; it is injected
// into the OAuth engine as its success response.
func (s *Server) loginSuccessHandler(w http.ResponseWriter, r *http.Request, _ *sessions.Session) {
	w.Header().Set("Content-Type", contentTypeHTML)
	data := struct{ HomeURL string }{HomeURL: s.config.GetBaseURL()}
	if err := successPageTmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("render success page")
	}
}

func (s *Server) healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"sessions": s.sessions.Len(),
		})
	}
}

// indexHandler is the default downstream application: a small status page
// for the bound session.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	w.Header().Set("Content-Type", contentTypeJSON)
	resp := map[string]any{"authenticated": false}
	if session != nil {
		resp["authenticated"] = session.Authenticated()
		if userID := session.UserID(); userID != "" {
			resp["user_id"] = userID
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}
