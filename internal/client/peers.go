package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/AlexZinkM/exchange-json-rpc/internal/metrics"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultSeedSource hosts one <network>.json seed list per network
	DefaultSeedSource = "https://raw.githubusercontent.com/ArkEcosystem/peers/master"

	defaultMaxPeerProbes = 10
	defaultProbeTimeout  = time.Second
	seedFetchTimeout     = 15 * time.Second
	coreAPIPlugin        = "core-api"
)

var (
	// ErrNoPeersAvailable is returned when the seed list is empty
	ErrNoPeersAvailable = errors.New("no peers available")

	// ErrNoReachablePeer is returned when every probed peer was unreachable
	ErrNoReachablePeer = errors.New("no reachable peer")
)

// Peer is a node API endpoint
type Peer struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Address returns host:port
func (p Peer) Address() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}

//go:generate mockgen -destination=mocks/mock_prober.go -package=mocks github.com/AlexZinkM/exchange-json-rpc/internal/client Prober

// Prober checks whether a peer accepts connections
type Prober interface {
	Reachable(ctx context.Context, address string) bool
}

// TCPProber dials the peer and closes the connection right away
type TCPProber struct {
	Timeout time.Duration
}

// Reachable implements Prober
func (p TCPProber) Reachable(ctx context.Context, address string) bool {
	dialer := net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// DirectoryOptions configures a Directory
type DirectoryOptions struct {
	Network         string
	Peer            string // pinned peer host, disables discovery
	PeerPort        int
	SeedSource      string
	MaxPeerProbes   int
	RequestTimeout  time.Duration
	RefreshInterval time.Duration // 0 refreshes once during Init
}

// Directory knows the peers of one network and picks a reachable one per request.
// The working set is replaced atomically so PickPeer never locks.
type Directory struct {
	opts    DirectoryOptions
	client  Doer
	prober  Prober
	log     *zap.Logger
	metrics *metrics.Metrics

	pinned  *Peer
	seeds   []Peer
	working atomic.Pointer[[]Peer]
}

// NewDirectory creates an uninitialised directory, call Init before use
func NewDirectory(opts DirectoryOptions, client Doer, prober Prober, log *zap.Logger, m *metrics.Metrics) *Directory {
	if opts.SeedSource == "" {
		opts.SeedSource = DefaultSeedSource
	}
	if opts.MaxPeerProbes <= 0 {
		opts.MaxPeerProbes = defaultMaxPeerProbes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if prober == nil {
		prober = TCPProber{Timeout: defaultProbeTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{opts: opts, client: client, prober: prober, log: log, metrics: m}
}

// Init loads the seeds. A pinned peer is used as is without touching the network.
func (d *Directory) Init(ctx context.Context) error {
	if d.opts.Peer != "" {
		pinned := Peer{IP: d.opts.Peer, Port: d.opts.PeerPort}
		if !validPort(pinned.Port) {
			return fmt.Errorf("invalid peer port %d", pinned.Port)
		}
		d.pinned = &pinned
		d.publish([]Peer{pinned})
		d.log.Info("using pinned peer", zap.String("peer", pinned.Address()))
		return nil
	}

	seeds, err := d.fetchSeeds(ctx)
	if err != nil {
		return err
	}
	d.seeds = seeds
	d.publish(seeds)
	d.log.Info("loaded seeds", zap.String("network", d.opts.Network), zap.Int("count", len(seeds)))

	if err := d.Refresh(ctx); err != nil {
		d.log.Warn("initial peer refresh failed, using seeds", zap.Error(err))
	}
	return nil
}

// Run refreshes the working set every RefreshInterval until ctx is done.
// It returns immediately when the directory is pinned or the interval is 0.
func (d *Directory) Run(ctx context.Context) {
	if d.pinned != nil || d.opts.RefreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(d.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				d.log.Warn("peer refresh failed, keeping previous peers", zap.Error(err))
			}
		}
	}
}

// Peers returns a snapshot of the working set
func (d *Directory) Peers() []Peer {
	p := d.working.Load()
	if p == nil {
		return nil
	}
	return append([]Peer(nil), (*p)...)
}

// PickPeer samples the working set until a peer answers the probe
func (d *Directory) PickPeer(ctx context.Context) (Peer, error) {
	if d.pinned != nil {
		return *d.pinned, nil
	}

	for i := 0; i < d.opts.MaxPeerProbes; i++ {
		if err := ctx.Err(); err != nil {
			return Peer{}, err
		}

		working := d.working.Load()
		if working == nil || len(*working) == 0 {
			return Peer{}, ErrNoPeersAvailable
		}

		peer := (*working)[rand.Intn(len(*working))]
		if d.prober.Reachable(ctx, peer.Address()) {
			return peer, nil
		}

		d.log.Warn("peer is unresponsive, choosing another", zap.String("peer", peer.Address()))
		if d.metrics != nil {
			d.metrics.PeerProbeFailures.Inc()
		}
	}

	return Peer{}, fmt.Errorf("%w after %d probes", ErrNoReachablePeer, d.opts.MaxPeerProbes)
}

// Refresh replaces the working set with the core-api peers advertised by a random seed.
// On failure or an empty answer the working set is left alone.
func (d *Directory) Refresh(ctx context.Context) error {
	if d.pinned != nil {
		return nil
	}
	if len(d.seeds) == 0 {
		return ErrNoPeersAvailable
	}

	seed := d.seeds[rand.Intn(len(d.seeds))]
	body, err := d.fetch(ctx, fmt.Sprintf("http://%s/api/peers", seed.Address()), d.opts.RequestTimeout)
	if err != nil {
		return fmt.Errorf("failed to fetch peers from %s: %w", seed.Address(), err)
	}

	peers := parseCorePeers(body)
	if len(peers) == 0 {
		return fmt.Errorf("seed %s advertised no core-api peers", seed.Address())
	}

	d.publish(peers)
	d.log.Debug("refreshed peers", zap.String("seed", seed.Address()), zap.Int("count", len(peers)))
	return nil
}

func (d *Directory) publish(peers []Peer) {
	d.working.Store(&peers)
	if d.metrics != nil {
		d.metrics.WorkingPeers.Set(float64(len(peers)))
	}
}

func (d *Directory) fetchSeeds(ctx context.Context) ([]Peer, error) {
	url := fmt.Sprintf("%s/%s.json", strings.TrimSuffix(d.opts.SeedSource, "/"), d.opts.Network)

	body, err := d.fetch(ctx, url, seedFetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to load seeds: %w", err)
	}

	var listed []Peer
	if err := json.Unmarshal(body, &listed); err != nil {
		return nil, fmt.Errorf("failed to decode seeds: %w", err)
	}

	seeds := make([]Peer, 0, len(listed))
	for _, seed := range listed {
		if seed.IP == "" {
			continue
		}
		// seed files list the p2p port, requests go to the API port
		seeds = append(seeds, Peer{IP: seed.IP, Port: d.opts.PeerPort})
	}
	if len(seeds) == 0 {
		return nil, ErrNoPeersAvailable
	}
	return seeds, nil
}

func (d *Directory) fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseCorePeers keeps peers that advertise a "<scope>/core-api" port
func parseCorePeers(body []byte) []Peer {
	var peers []Peer
	gjson.GetBytes(body, "data").ForEach(func(_, entry gjson.Result) bool {
		ip := entry.Get("ip").String()
		if ip == "" {
			return true
		}
		entry.Get("ports").ForEach(func(key, value gjson.Result) bool {
			parts := strings.Split(key.String(), "/")
			if len(parts) < 2 || parts[1] != coreAPIPlugin {
				return true
			}
			if port := int(value.Int()); validPort(port) {
				peers = append(peers, Peer{IP: ip, Port: port})
			}
			return false
		})
		return true
	})
	return peers
}
