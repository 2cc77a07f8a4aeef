package main

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/zeptools/invoicer/api"
	"github.com/zeptools/invoicer/capture"
	"github.com/zeptools/invoicer/conf"
	"github.com/zeptools/invoicer/editor"
	"github.com/zeptools/invoicer/logging"
	"github.com/zeptools/invoicer/pdfs"
	"github.com/zeptools/invoicer/preview"
	"github.com/zeptools/invoicer/schedjobs"
)

const (
	throttleCleanupCycle     = 10 * time.Minute
	throttleCleanupOlderThan = time.Hour
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "run the HTTP editor, the admin socket and the background jobs",
		Action: serve,
	}
}

func serve(cCtx *cli.Context) error {
	root, err := filepath.Abs(cCtx.String("root"))
	if err != nil {
		return err
	}
	rootCtx, rootCancel := context.WithCancel(cCtx.Context)
	defer rootCancel()

	c := &conf.Core{}
	if err = c.BaseInit(root, rootCtx, rootCancel); err != nil {
		return err
	}
	if cCtx.Bool("verbose") {
		logging.Setup(true)
	}
	log := logging.Component("main")
	defer func() {
		if err := c.ResourceCleanUp(); err != nil {
			log.Error("resource cleanup", "err", err)
		}
	}()

	if err = c.LoadAppConf(); err != nil {
		return err
	}
	if err = c.PrepareKVDatabase(); err != nil {
		return err
	}
	if err = c.PrepareSQLDatabases(); err != nil {
		return err
	}
	if err = c.PrepareWebSessions(); err != nil {
		return err
	}
	store, err := c.InvoiceStore(rootCtx)
	if err != nil {
		return err
	}
	signer, err := c.LinkSigner()
	if err != nil {
		return err
	}
	renderer, err := preview.NewRenderer(c.Host)
	if err != nil {
		return err
	}
	rasterizer := capture.NewRodRasterizer(c.RodConf())
	defer func() {
		if err := rasterizer.Close(); err != nil {
			log.Error("close browser", "err", err)
		}
	}()

	c.PrepareThrottleBucketStore(throttleCleanupCycle, throttleCleanupOlderThan)
	c.ThrottleBucketStore.SetBucketGroup(api.ThrottleGroup, c.ThrottleBucketConf())

	srv := api.New(api.Deps{
		Sessions:        editor.NewRegistry(c.AppName, store, editor.Options{}),
		WebSession:      c.WebSessionManager,
		Renderer:        renderer,
		Rasterizer:      rasterizer,
		Assembler:       pdfs.NewAssembler(),
		Options:         c.CaptureOptions(),
		Exports:         c.Exports,
		Transients:      c.Transients(),
		Downloads:       c.Downloads(),
		Signer:          signer,
		LinkTTL:         c.LinkTTL(),
		BaseURL:         c.Host,
		Throttle:        c.ThrottleBucketStore,
		MetricsRegistry: c.MetricsRegistry,
	})

	c.PrepareJobScheduler()
	sweep, err := schedjobs.ParseCronJob("sweep-transients", c.App.SweepCron)
	if err != nil {
		return err
	}
	sweep.Task = func(context.Context) error {
		if n := srv.SweepTransients(time.Now()); n > 0 {
			log.Info("expired artifacts removed", "count", n)
		}
		return nil
	}
	c.JobScheduler.AddCronJob(sweep)

	if sock := c.App.UDSSocket; sock != "" {
		if !filepath.IsAbs(sock) {
			sock = filepath.Join(root, sock)
		}
		c.PrepareUDSService(sock, srv.AdminCommands())
	}
	c.PrepareWebService(srv.Routes())

	if err = c.StartServices(); err != nil {
		rootCancel()
		c.StopServices()
		return err
	}
	log.Info("serving", "app", c.AppName, "listen", c.Listen)

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		defer rootCancel()
		return c.WaitServicesDone()
	})
	g.Go(func() error {
		<-gctx.Done()
		c.StopServices()
		return nil
	})
	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped", "app", c.AppName)
	return nil
}
