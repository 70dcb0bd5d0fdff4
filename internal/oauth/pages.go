package oauth

import (
	"fmt"
	"html"
	"net/http"
)

func writePage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!doctype html><html><head><title>%s</title></head><body><h1>%s</h1>%s</body></html>", html.EscapeString(title), html.EscapeString(title), body)
}

func writeSuccessPage(w http.ResponseWriter) {
	writePage(w, http.StatusOK, "Authorized", "<p>You may close this tab and return to your client.</p>")
}

func writeFailurePage(w http.ResponseWriter, reason string) {
	writePage(w, http.StatusBadRequest, "Authorization failed", fmt.Sprintf("<p>%s</p><p>You may close this tab and try again.</p>", html.EscapeString(reason)))
}

func writeAlreadyProcessedPage(w http.ResponseWriter) {
	writePage(w, http.StatusOK, "Already processed", "<p>This authorization has already been completed. You may close this tab.</p>")
}
