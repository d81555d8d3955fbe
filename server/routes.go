// Package server - Haupt-Router und Server-Setup fuer Diffused
// Beinhaltet: Server-Struct, Router-Registrierung, Middleware, Server-Start
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"diffused/envconfig"
	"diffused/imagegen/backend"
	"diffused/imagegen/pipeline"
	"diffused/imagegen/scheduler"
	"diffused/logutil"
	"diffused/version"
)

var mode string = gin.DebugMode

// Server verwaltet den HTTP-Server und die geladene Pipeline
type Server struct {
	addr     net.Addr
	backend  backend.Backend
	pipeline *pipeline.Pipeline
}

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// isLocalIP prueft ob die IP-Adresse zu einem lokalen Interface gehoert
func isLocalIP(ip netip.Addr) bool {
	if interfaces, err := net.Interfaces(); err == nil {
		for _, iface := range interfaces {
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}

			for _, a := range addrs {
				if parsed, _, err := net.ParseCIDR(a.String()); err == nil {
					if parsed.String() == ip.String() {
						return true
					}
				}
			}
		}
	}

	return false
}

// allowedHost prueft ob der Host erlaubt ist
func allowedHost(host string) bool {
	host = strings.ToLower(host)

	if host == "" || host == "localhost" {
		return true
	}

	if hostname, err := os.Hostname(); err == nil && host == strings.ToLower(hostname) {
		return true
	}

	tlds := []string{
		"localhost",
		"local",
		"internal",
	}

	// Pruefe ob der Host eine lokale TLD hat
	for _, tld := range tlds {
		if strings.HasSuffix(host, "."+tld) {
			return true
		}
	}

	return false
}

// allowedHostsMiddleware blockiert Anfragen von nicht erlaubten Hosts
func allowedHostsMiddleware(addr net.Addr) gin.HandlerFunc {
	return func(c *gin.Context) {
		if addr == nil {
			c.Next()
			return
		}

		if addr, err := netip.ParseAddrPort(addr.String()); err == nil && !addr.Addr().IsLoopback() {
			c.Next()
			return
		}

		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if addr, err := netip.ParseAddr(host); err == nil {
			if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || isLocalIP(addr) {
				c.Next()
				return
			}
		}

		if allowedHost(host) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}

			c.Next()
			return
		}

		c.AbortWithStatus(http.StatusForbidden)
	}
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "Diffused is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "Diffused is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	// Inference
	r.POST("/api/generate", s.GenerateHandler)
	r.GET("/api/schedulers", s.SchedulersHandler)

	return r, nil
}

// SchedulersHandler listet die verfuegbaren Step-Policies
func (s *Server) SchedulersHandler(c *gin.Context) {
	name := envconfig.Scheduler()
	if name == "" {
		name = scheduler.DefaultName
	}
	c.JSON(http.StatusOK, gin.H{
		"schedulers": scheduler.Names(),
		"default":    name,
	})
}

// Serve startet den HTTP-Server fuer das gegebene Backend
func Serve(ln net.Listener, b backend.Backend) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	var opts []pipeline.Option
	if name := envconfig.Scheduler(); name != "" {
		if _, err := scheduler.New(name); err != nil {
			return err
		}
		opts = append(opts, pipeline.WithDefaultScheduler(name))
	}

	s := &Server{
		addr:     ln.Addr(),
		backend:  b,
		pipeline: pipeline.New(b.Denoiser(), b.Decoder(), b.TextEncoder(), opts...),
	}

	h, err := s.GenerateRoutes()
	if err != nil {
		return err
	}

	ctx, done := context.WithCancel(context.Background())

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	srvr := &http.Server{
		Handler: h,
	}

	// listen for a ctrl+c and unload the backend
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
		b.Close()
		done()
	}()

	err = srvr.Serve(ln)
	// If server is closed from the signal handler, wait for the ctx to be
	// done otherwise error out quickly
	if !slices.Contains([]error{http.ErrServerClosed}, err) {
		return err
	}
	<-ctx.Done()
	return nil
}
