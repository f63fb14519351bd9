package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xavierroma/nhttp/app/config"
	"github.com/xavierroma/nhttp/app/server"
	"github.com/xavierroma/nhttp/app/types"
)

const page = `<html>
  <head><title>nhttp server</title></head>
  <body>
    <h1>nhttp server</h1>
    <p>how is it going</p>
    <audio controls><source src='/song.mp3' type='audio/mpeg'></audio>
  </body>
</html>`

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	port := flag.Int("port", -1, "port to listen on (overrides the config file)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port >= 0 {
		cfg.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	s := server.NewServer(cfg, server.WithLogger(logger))
	if err := registerRoutes(s, cfg); err != nil {
		logger.Error("invalid route configuration", "err", err)
		os.Exit(1)
	}

	if err := s.ListenAndServe(); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func registerRoutes(s *server.Server, cfg config.Config) error {
	routes := []struct {
		method  types.Method
		path    string
		handler types.Handler
	}{
		{types.Get, "/", htmlHandler},
		{types.Get, "/name/{name}/", greetHandler},
		{types.Get, "/song.mp3", fileHandler(filepath.Join(cfg.DocumentRoot, "song.mp3"), "audio/mpeg")},
		{types.Get, "/files/{file}", staticHandler(cfg.DocumentRoot)},
		{types.Head, "/files/{file}", staticHandler(cfg.DocumentRoot)},
		{types.Get, "/600", customStatusHandler},
		{types.Get, "/temporary-redirect", redirectHandler(false)},
		{types.Get, "/permanent-redirect", redirectHandler(true)},
		{types.Get, "/query-param", queryHandler},
		{types.Post, "/echo", echoHandler},
	}
	for _, r := range routes {
		if err := s.Handle(r.method, r.path, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// result maps an emission error to the handler result code.
func result(err error) int {
	if err != nil {
		return -1
	}
	return 0
}

func htmlHandler(c *types.Context) int {
	return result(c.SendHTML(page, types.StatusOK))
}

func greetHandler(c *types.Context) int {
	name, _ := c.PathParam("name")
	return result(c.SendString(fmt.Sprintf("Hey %s, how are you?", name), types.StatusOK))
}

func fileHandler(path, contentType string) types.Handler {
	return func(c *types.Context) int {
		c.SetResponseHeader("Content-Type", contentType)
		return result(c.SendFile(path))
	}
}

func staticHandler(root string) types.Handler {
	return func(c *types.Context) int {
		name, _ := c.PathParam("file")
		if name != filepath.Base(name) || name == ".." {
			return result(c.SendString("forbidden", types.StatusForbidden))
		}
		return result(c.SendFile(filepath.Join(root, name)))
	}
}

func customStatusHandler(c *types.Context) int {
	return result(c.SendString("My custom error code!", 600))
}

func redirectHandler(permanent bool) types.Handler {
	return func(c *types.Context) int {
		return result(c.Redirect("/", permanent))
	}
}

func queryHandler(c *types.Context) int {
	foo, _ := c.QueryParam("foo")
	bar, _ := c.QueryParam("bar")
	return result(c.SendString(fmt.Sprintf("foo = <%s>, bar = <%s>", foo, bar), types.StatusOK))
}

func echoHandler(c *types.Context) int {
	body, err := c.ReadBody()
	if err != nil {
		return result(c.SendString(err.Error(), types.StatusBadRequest))
	}
	ctype, ok := c.RequestHeader("Content-Type")
	if !ok {
		ctype = "application/octet-stream"
	}
	return result(c.SendBlob(body, ctype, types.StatusOK))
}
