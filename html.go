/*
Copyright © 2025 Happy Hour Games
*/

package main

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}

// serveHomePage renders a plain listing of open rooms. The game itself is
// played over the /ws endpoint; this page exists for humans poking around
// and to hand out the identity cookie early.
func serveHomePage(cfg *Config, mgr *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		if _, cookie := playerToken(r); cookie != nil {
			http.SetCookie(w, cookie)
		}

		var b strings.Builder
		b.WriteString("<h1>mindhall</h1>")
		b.WriteString(fmt.Sprintf("<p>Connect to %s/ws to play.</p>", cfg.prefix))

		rooms := mgr.List()
		if len(rooms) == 0 {
			b.WriteString("<p>No open rooms.</p>")
		} else {
			b.WriteString("<ul>")
			for _, room := range rooms {
				b.WriteString(fmt.Sprintf("<li>%s (%s): %d/%d players</li>",
					html.EscapeString(room.Name), room.RoomID, room.Occupancy, room.Capacity))
			}
			b.WriteString("</ul>")
		}

		_, _ = w.Write([]byte(newPage("mindhall", b.String())))
	}
}

func serveHealthCheck(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte("Ok\n"))
	}
}

func serveRobots(cfg *Config, logger *zap.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			logger.Error("writing robots.txt", zap.Error(err))

			return
		}
	}
}
