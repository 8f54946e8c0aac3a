package adapthttp

const unresolvableMessage = "Your account could not be verified. Retry or sign out."

const waitingPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="1">
<title>Store Admin</title>
</head>
<body>
<main style="display:flex;height:100vh;align-items:center;justify-content:center;font-family:sans-serif">
<p>Loading&hellip;</p>
</main>
</body>
</html>
`

const unresolvablePage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Store Admin</title>
</head>
<body>
<main style="max-width:28rem;margin:20vh auto;font-family:sans-serif">
<h1>Something went wrong</h1>
<p>` + unresolvableMessage + `</p>
<form method="post" action="/api/auth/retry" style="display:inline"><button>Retry</button></form>
<form method="post" action="/api/auth/logout" style="display:inline"><button>Sign out</button></form>
</main>
</body>
</html>
`

// loginPage is served when WEB_DIR has no login.html.
const loginPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Store Admin - Sign in</title>
</head>
<body>
<main style="max-width:22rem;margin:15vh auto;font-family:sans-serif">
<h1>Store Admin</h1>
<p id="notice" role="alert" style="color:#b91c1c"></p>
<form id="login">
<p><label>Email<br><input name="email" type="email" required autocomplete="username"></label></p>
<p><label>Password<br><input name="password" type="password" required autocomplete="current-password"></label></p>
<p><button>Sign in</button></p>
</form>
<p id="sso" hidden><a href="/api/auth/sso/login">Sign in with SSO</a></p>
</main>
<script>
const notice = document.getElementById("notice");
fetch("/api/session").then(r => r.json()).then(s => {
  if (s.notices && s.notices.length) notice.textContent = s.notices[0].message;
  if (s.status === "authorized") location.href = "/";
});
fetch("/api/config").then(r => r.json()).then(c => {
  document.getElementById("sso").hidden = !c.sso_enabled;
});
document.getElementById("login").addEventListener("submit", async e => {
  e.preventDefault();
  const f = new FormData(e.target);
  const r = await fetch("/api/auth/login", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({email: f.get("email"), password: f.get("password")}),
  });
  const body = await r.json();
  if (r.ok) { location.href = "/"; return; }
  notice.textContent = body.error || "Sign-in failed";
});
</script>
</body>
</html>
`
