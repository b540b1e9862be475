// Command wireproxy fronts one or more real mongo nodes with proxies that
// speak the same wire protocol, relaying and rewriting traffic through the
// proxy package.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	addrs "github.com/facebookgo/flag.addrs"
	"github.com/facebookgo/gangliamr"
	"github.com/facebookgo/inject"
	"github.com/facebookgo/startstop"
	"github.com/facebookgo/stats"
	"github.com/mcuadros/wireproxy/netio"
	"github.com/mcuadros/wireproxy/proxy"
)

func main() {
	if err := Main(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main parses flags, builds one proxy.Proxy per real mongo member and runs
// them until SIGTERM/SIGINT.
func Main() error {
	var mongoAddrs []net.Addr
	addrs.FlagManyVar(&mongoAddrs, "mongo_addrs", "tcp:localhost:27017",
		"comma separated list of net:host:port real mongo addresses to front")

	bindHost := flag.String("bind_host", "0.0.0.0", "host the proxy listeners bind on")
	portStart := flag.Int("port_start", 6000, "start of the proxy listener port range")
	portEnd := flag.Int("port_end", 6010, "end of the proxy listener port range")
	messageTimeout := flag.Duration("message_timeout", 2*time.Minute, "timeout for one message to be proxied")
	clientIdleTimeout := flag.Duration("client_idle_timeout", 60*time.Minute, "idle timeout for client connections")
	getLastErrorTimeout := flag.Duration("get_last_error_timeout", time.Minute, "timeout for getLastError pinning")
	serverIdleTimeout := flag.Duration("server_idle_timeout", 5*time.Minute, "idle timeout for pooled server connections")
	maxConnections := flag.Uint("max_connections", 100, "maximum number of connections per mongo node")
	minIdleConnections := flag.Uint("min_idle_connections", 5, "minimum idle connections kept per mongo node")
	serverClosePoolSize := flag.Uint("server_close_pool_size", 5, "goroutines closing idle server connections")
	schedulerWorkers := flag.Int("scheduler_workers", 64, "blocking-task worker pool size")
	schedulerQueueSize := flag.Int("scheduler_queue_size", 256, "blocking-task queue capacity")

	flag.Parse()

	if len(mongoAddrs) == 0 {
		return fmt.Errorf("wireproxy: no mongo addresses given")
	}
	if *portEnd-*portStart+1 < len(mongoAddrs) {
		return fmt.Errorf("wireproxy: port range %d-%d too small for %d members", *portStart, *portEnd, len(mongoAddrs))
	}

	var members []proxy.Member
	for i, real := range mongoAddrs {
		members = append(members, proxy.Member{
			Real:  real.String(),
			Proxy: net.JoinHostPort(*bindHost, strconv.Itoa(*portStart+i)),
			State: proxy.ReplicaStateSecondary,
		})
	}
	topology := proxy.NewTopology(members)

	var log stdLogger
	var statsClient stats.HookClient
	scheduler := netio.NewGoScheduler(*schedulerWorkers, *schedulerQueueSize)

	var graph inject.Graph
	if err := graph.Provide(
		&inject.Object{Value: &log},
		&inject.Object{Value: &statsClient},
	); err != nil {
		return err
	}

	proxies := make([]*proxy.Proxy, len(members))
	for i, m := range members {
		p := &proxy.Proxy{
			Log:       &log,
			Scheduler: scheduler,
			ProxyAddr: m.Proxy,
			MongoAddr: m.Real,
			Handler: &proxy.Handler{
				Log:                              &log,
				GetLastErrorRewriter:             &proxy.GetLastErrorRewriter{Log: &log},
				IsMasterResponseRewriter:         &proxy.IsMasterResponseRewriter{Log: &log, Topology: topology},
				ReplSetGetStatusResponseRewriter: &proxy.ReplSetGetStatusResponseRewriter{Log: &log, Topology: topology},
			},
			MaxConnections:       *maxConnections,
			MinIdleConnections:   *minIdleConnections,
			ServerClosePoolSize:  *serverClosePoolSize,
			ServerIdleTimeout:    *serverIdleTimeout,
			GetLastErrorTimeout:  *getLastErrorTimeout,
			ClientIdleTimeout:    *clientIdleTimeout,
			MessageTimeout:       *messageTimeout,
		}
		proxies[i] = p
		if err := graph.Provide(&inject.Object{Value: p, Name: fmt.Sprintf("proxy-%d", i)}); err != nil {
			return err
		}
	}

	if err := graph.Populate(); err != nil {
		return err
	}
	objects := graph.Objects()

	gregistry := gangliamr.NewTestRegistry()
	for _, o := range objects {
		if rmO, ok := o.Value.(registerMetrics); ok {
			rmO.RegisterMetrics(gregistry)
		}
	}

	if err := startstop.Start(objects, &log); err != nil {
		return err
	}
	defer startstop.Stop(objects, &log)

	for _, p := range proxies {
		log.Infof("listening: %s", p)
	}

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	<-ch
	signal.Stop(ch)
	return nil
}

type registerMetrics interface {
	RegisterMetrics(r *gangliamr.Registry)
}
