package http

import (
	"html/template"
	"net/http"

	"budgetplanner/internal/auth"
	applog "budgetplanner/internal/log"
)

// Minimal HTML shells for the three entry points. The pages talk to the
// JSON API; everything else redirects to the dashboard, which bounces
// unauthenticated visitors to the login page.

var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "login"}}<!doctype html>
<html><head><title>Budget Planner - Sign in</title></head>
<body>
<h1>Sign in</h1>
<form id="login" onsubmit="return submitLogin(event)">
  <input type="email" name="email" placeholder="Email" required>
  <input type="password" name="password" placeholder="Password" required>
  <button type="submit">Sign in</button>
</form>
<p><a href="/register">Create an account</a></p>
<div id="error"></div>
<script>
async function submitLogin(e) {
  e.preventDefault();
  const f = new FormData(e.target);
  const res = await fetch('/api/login', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({email: f.get('email'), password: f.get('password')})
  });
  if (res.ok) { window.location = '/dashboard'; return false; }
  const body = await res.json();
  document.getElementById('error').textContent = body.error;
  return false;
}
</script>
</body></html>{{end}}

{{define "register"}}<!doctype html>
<html><head><title>Budget Planner - Register</title></head>
<body>
<h1>Create an account</h1>
<form id="register" onsubmit="return submitRegister(event)">
  <input type="text" name="display_name" placeholder="Name">
  <input type="email" name="email" placeholder="Email" required>
  <input type="password" name="password" placeholder="Password (min 6 characters)" required>
  <button type="submit">Register</button>
</form>
<p><a href="/login">Already registered? Sign in</a></p>
<div id="error"></div>
<script>
async function submitRegister(e) {
  e.preventDefault();
  const f = new FormData(e.target);
  const res = await fetch('/api/register', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({
      email: f.get('email'),
      password: f.get('password'),
      display_name: f.get('display_name')
    })
  });
  if (res.ok) { window.location = '/dashboard'; return false; }
  const body = await res.json();
  document.getElementById('error').textContent = body.error;
  return false;
}
</script>
</body></html>{{end}}

{{define "dashboard"}}<!doctype html>
<html><head><title>Budget Planner</title></head>
<body>
<h1>Budget Planner</h1>
<p>Signed in as {{.Email}}</p>
<div id="app" data-api="/api/transactions"></div>
</body></html>{{end}}
`))

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.signedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.renderPage(w, r, "login", nil)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if s.signedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.renderPage(w, r, "register", nil)
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	state := auth.State{Presence: auth.Absent}
	if token := bearerToken(r); token != "" {
		if session, err := s.provider.Lookup(r.Context(), token); err == nil {
			state = auth.State{Presence: auth.Present, Session: &session}
		}
	}

	guard := auth.NewGuard(resolvedState{state})
	defer guard.Close()

	switch guard.Decide() {
	case auth.RenderProtected:
		s.renderPage(w, r, "dashboard", struct{ Email string }{Email: guard.Session().Email})
	default:
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

// resolvedState adapts an already-resolved request session to the
// guard's stream interface: the single known state is delivered on
// subscription.
type resolvedState struct {
	state auth.State
}

func (r resolvedState) Subscribe(fn func(auth.State)) func() {
	fn(r.state)
	return func() {}
}

// handleIndex catches the root and every unknown path, bouncing to the
// dashboard.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Server) signedIn(r *http.Request) bool {
	token := bearerToken(r)
	if token == "" {
		return false
	}
	_, err := s.provider.Lookup(r.Context(), token)
	return err == nil
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		applog.FromContext(r.Context()).Error("page render failed",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err.Error())
	}
}
