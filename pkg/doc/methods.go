package doc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnknownMethod is returned by Verb for a name missing from Methods.
var ErrUnknownMethod = errors.New("unknown http method")

// Methods lists the recognized HTTP verbs, lowercased.
var Methods = []string{
	"acl", "bind", "checkout", "connect", "copy", "delete", "get", "head",
	"link", "lock", "m-search", "merge", "mkactivity", "mkcalendar", "mkcol",
	"move", "notify", "options", "patch", "post", "propfind", "proppatch",
	"purge", "put", "rebind", "report", "search", "source", "subscribe",
	"trace", "unbind", "unlink", "unlock", "unsubscribe",
}

// IsMethod reports whether name is listed in Methods.
func IsMethod(name string) bool {
	name = strings.ToLower(name)
	for _, m := range Methods {
		if m == name {
			return true
		}
	}
	return false
}

// Verb is Method(method) followed by URL(path, params) for any recognized
// verb.
func (a *Action) Verb(method, path string, params any) (string, error) {
	if !IsMethod(method) {
		return "", fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return a.Method(method).URL(path, params)
}

func (a *Action) Get(path string, params any) (string, error) {
	return a.Method(http.MethodGet).URL(path, params)
}

func (a *Action) Post(path string, params any) (string, error) {
	return a.Method(http.MethodPost).URL(path, params)
}

func (a *Action) Put(path string, params any) (string, error) {
	return a.Method(http.MethodPut).URL(path, params)
}

func (a *Action) Patch(path string, params any) (string, error) {
	return a.Method(http.MethodPatch).URL(path, params)
}

func (a *Action) Delete(path string, params any) (string, error) {
	return a.Method(http.MethodDelete).URL(path, params)
}

func (a *Action) Head(path string, params any) (string, error) {
	return a.Method(http.MethodHead).URL(path, params)
}

func (a *Action) Options(path string, params any) (string, error) {
	return a.Method(http.MethodOptions).URL(path, params)
}

func (a *Action) Trace(path string, params any) (string, error) {
	return a.Method(http.MethodTrace).URL(path, params)
}

func (a *Action) Connect(path string, params any) (string, error) {
	return a.Method(http.MethodConnect).URL(path, params)
}
