// fabric is the single entry point for every service in the connection
// fabric: crypto, event, proxy, gms, login and party. The --service flag
// picks which one this process runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/ashenvale/fabric/logging"
	"github.com/ashenvale/fabric/metrics"
	"github.com/ashenvale/fabric/service/crypto"
	"github.com/ashenvale/fabric/service/event"
	"github.com/ashenvale/fabric/service/gms"
	"github.com/ashenvale/fabric/service/login"
	"github.com/ashenvale/fabric/service/party"
	"github.com/ashenvale/fabric/service/proxy"
)

const fabricVersion = "fabric-0.1.0"

const (
	defaultCryptoPort = 32001
	defaultEventPort  = 38171
	defaultDBPort     = 38180
)

func main() {
	service := flag.String("service", "", "Service to run: crypto, event, proxy, gms, login, party")
	resourcesDir := flag.String("resources-dir", "./resources", "Resource file directory")
	flag.StringVar(resourcesDir, "r", "./resources", "Resource file directory (shorthand)")
	port := flag.Int("port", 0, "Listen port (defaults depend on the service)")
	upstreamPort := flag.Int("upstream-port", 0, "Proxy listen port")
	downstreamPort := flag.Int("downstream-port", 0, "Proxy forward port")
	dbAddr := flag.String("db-addr", fmt.Sprintf("127.0.0.1:%d", defaultDBPort), "DB Agent address")
	gmsAddr := flag.String("gms-addr", "", "Global Manager address (login)")
	metricsAddr := flag.String("metrics-addr", "", "Expose Prometheus metrics on this address")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(fabricVersion)
		return
	}
	logging.SetLevel(*logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(*metricsAddr, metrics.Handler()); err != nil {
				log.Errorf("metrics listener: %v", err)
			}
		}()
	}

	var err error
	switch *service {
	case "crypto":
		s := &crypto.Service{ResourcesDir: *resourcesDir}
		err = s.ListenAndServe(ctx, listenAddr(*port, defaultCryptoPort))
	case "event":
		s := &event.Service{}
		err = s.ListenAndServe(ctx, listenAddr(*port, defaultEventPort))
	case "proxy":
		if *upstreamPort == 0 || *downstreamPort == 0 {
			fatalUsage("proxy needs --upstream-port and --downstream-port")
		}
		s := &proxy.Service{DownstreamAddr: fmt.Sprintf("127.0.0.1:%d", *downstreamPort)}
		err = s.ListenAndServe(ctx, listenAddr(*upstreamPort, 0))
	case "gms":
		if *port == 0 {
			fatalUsage("gms needs --port")
		}
		h := gms.NewHub(*dbAddr)
		err = h.ListenAndServe(ctx, listenAddr(*port, 0))
	case "login":
		if *port == 0 {
			fatalUsage("login needs --port")
		}
		s := &login.Service{
			RSAKeyPath: filepath.Join(*resourcesDir, "login_rsa.pem"),
			GMSAddr:    *gmsAddr,
			DBAddr:     *dbAddr,
		}
		err = s.ListenAndServe(ctx, listenAddr(*port, 0))
	case "party":
		if *port == 0 {
			fatalUsage("party needs --port")
		}
		err = party.NewService().ListenAndServe(ctx, listenAddr(*port, 0))
	case "":
		fatalUsage("--service is required")
	default:
		fatalUsage(fmt.Sprintf("unknown service %q", *service))
	}
	if err != nil {
		log.Fatalf("%s: %v", *service, err)
	}
}

func listenAddr(port, fallback int) string {
	if port == 0 {
		port = fallback
	}
	return fmt.Sprintf(":%d", port)
}

func fatalUsage(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	flag.Usage()
	os.Exit(1)
}
