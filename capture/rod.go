package capture

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/hashicorp/go-multierror"

	"github.com/zeptools/invoicer/logging"
)

type RodConf struct {
	ControlURL string        `json:"control_url"` // connect to a running browser instead of launching one
	Bin        string        `json:"bin"`         // chrome binary; empty lets the launcher find or download one
	Timeout    time.Duration `json:"timeout"`     // per capture
}

// RodRasterizer captures surfaces with headless Chrome.
// The browser is started lazily on first capture and shared; every capture gets its own page.
// Web security is a launch flag, so AllowCrossOriginImages of the first capture holds until Close.
// Later captures asking for a different value reuse the browser and are logged.
type RodRasterizer struct {
	conf RodConf

	mu             sync.Mutex
	browser        *rod.Browser
	launcher       *launcher.Launcher
	userDataDir    string
	webSecurityOff bool
}

func NewRodRasterizer(conf RodConf) *RodRasterizer {
	if conf.Timeout <= 0 {
		conf.Timeout = 30 * time.Second
	}
	return &RodRasterizer{conf: conf}
}

func (r *RodRasterizer) Capture(ctx context.Context, s Surface, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	if err := CheckAssets(s, opts); err != nil {
		return nil, err
	}
	bg, err := ParseHexColor(opts.BackgroundColor)
	if err != nil {
		return nil, captureErr("options", err)
	}
	if s.Width <= 0 {
		return nil, captureErr("options", errors.New("surface width must be positive"))
	}

	browser, err := r.ensureBrowser(opts.AllowCrossOriginImages)
	if err != nil {
		return nil, captureErr("launch", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.conf.Timeout)
	defer cancel()

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, captureErr("open page", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logging.Component("capture").Debug("close page", "err", cerr)
		}
	}()

	if err := setViewport(page, s.Width, s.Width, opts.ScaleFactor); err != nil {
		return nil, captureErr("viewport", err)
	}
	if err := page.SetDocumentContent(s.HTML); err != nil {
		return nil, captureErr("load", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, captureErr("load", err)
	}

	selector := s.Selector
	if selector == "" {
		selector = "body"
	}
	el, err := page.Element(selector)
	if err != nil {
		return nil, captureErr("select "+selector, err)
	}
	// grow the viewport to the element so the shot is never clipped
	shape, err := el.Shape()
	if err != nil {
		return nil, captureErr("measure", err)
	}
	if box := shape.Box(); box != nil {
		if err := setViewport(page, s.Width, int(math.Ceil(box.Y+box.Height)), opts.ScaleFactor); err != nil {
			return nil, captureErr("viewport", err)
		}
	}
	shot, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, captureErr("screenshot", err)
	}

	out, err := Flatten(shot, bg)
	if err != nil {
		return nil, captureErr("flatten", err)
	}
	return out, nil
}

func setViewport(page *rod.Page, width, height int, scale float64) error {
	return page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            max(height, 1),
		DeviceScaleFactor: scale,
		Mobile:            false,
	})
}

func (r *RodRasterizer) ensureBrowser(disableWebSecurity bool) (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		if disableWebSecurity != r.webSecurityOff {
			logging.Component("capture").Warn("browser already running, cross-origin option ignored",
				"requested", disableWebSecurity, "effective", r.webSecurityOff)
		}
		return r.browser, nil
	}

	controlURL := r.conf.ControlURL
	if controlURL == "" {
		dir, err := os.MkdirTemp("", "invoicer-chrome-")
		if err != nil {
			return nil, err
		}
		l := launcher.New().Headless(true).UserDataDir(dir)
		if r.conf.Bin != "" {
			l = l.Bin(r.conf.Bin)
		}
		if disableWebSecurity {
			l = l.Set("disable-web-security")
		}
		controlURL, err = l.Launch()
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, err
		}
		r.launcher = l
		r.userDataDir = dir
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		_ = r.cleanupLocked()
		return nil, err
	}
	r.browser = browser
	r.webSecurityOff = disableWebSecurity && r.conf.ControlURL == ""
	logging.Component("capture").Info("browser connected", "control_url", controlURL)
	return browser, nil
}

// Close shuts the browser down and removes its profile directory.
func (r *RodRasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result *multierror.Error
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		r.browser = nil
	}
	if err := r.cleanupLocked(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (r *RodRasterizer) cleanupLocked() error {
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher = nil
	}
	if r.userDataDir == "" {
		return nil
	}
	dir := r.userDataDir
	r.userDataDir = ""
	return os.RemoveAll(dir)
}
