package stub

import "net/http"

// Default is the process-wide registry used by the package-level
// functions.
var Default = NewRegistry()

func Add(p Predicate, resp Responder) ID { return Default.Add(p, resp) }

func AddNamed(name string, p Predicate, resp Responder) ID {
	return Default.AddNamed(name, p, resp)
}

func Remove(id ID) bool { return Default.Remove(id) }

func RemoveLast() bool { return Default.RemoveLast() }

func RemoveAll() { Default.RemoveAll() }

func List() []Info { return Default.List() }

func SetName(id ID, name string) bool { return Default.SetName(id, name) }

func SetEnabled(enabled bool) { Default.SetEnabled(enabled) }

func Enabled() bool { return Default.Enabled() }

func OnActivation(fn ActivationFunc) { Default.OnActivation(fn) }

func OnRedirect(fn RedirectFunc) { Default.OnRedirect(fn) }

func OnFinish(fn FinishFunc) { Default.OnFinish(fn) }

// Install makes c consult the default registry before its transport.
func Install(c *http.Client) { Default.Install(c) }

// InstallDefault wraps http.DefaultClient and returns a function that
// restores its previous transport.
func InstallDefault() (restore func()) {
	prev := http.DefaultClient.Transport
	Default.Install(http.DefaultClient)
	return func() { http.DefaultClient.Transport = prev }
}
