package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/akarpov/imagebot/internal/config"
	"gorm.io/gorm"
)

// Reindexer re-scans the document directory into the retrieval index. The
// index is a separate subsystem; the daemon only knows how to poke it on a
// schedule.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// Daemon is the main bot process. It connects to the chat platform via an
// Adapter, builds the aggregation pipeline, and pumps inbound events until
// the context is cancelled.
type Daemon struct {
	db        *gorm.DB
	cfg       *config.Config
	adapter   Adapter
	backend   Backend
	reindexer Reindexer
	out       io.Writer
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	DB        *gorm.DB
	Config    *config.Config
	Adapter   Adapter
	Backend   Backend
	Reindexer Reindexer // optional; enables scheduled reindexing
	Out       io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("bot: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("bot: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: adapter is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("bot: backend is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		db:        opts.DB,
		cfg:       opts.Config,
		adapter:   opts.Adapter,
		backend:   opts.Backend,
		reindexer: opts.Reindexer,
		out:       out,
	}, nil
}

// Run starts the bot. It connects the adapter, wires the store, aggregator,
// assembler, dispatcher, processor, and router, and blocks until the context
// is cancelled. On shutdown it closes the adapter gracefully; any album
// flush already scheduled still runs to completion.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "ImageBot connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("bot: connect: %w", err)
	}

	store, err := NewStore(d.db)
	if err != nil {
		d.adapter.Close()
		return err
	}

	assembler, err := NewAssembler(store)
	if err != nil {
		d.adapter.Close()
		return err
	}

	dispatcher, err := NewDispatcher(d.backend)
	if err != nil {
		d.adapter.Close()
		return err
	}

	processor, err := NewProcessor(ProcessorOpts{
		Adapter:    d.adapter,
		Assembler:  assembler,
		Dispatcher: dispatcher,
		Store:      store,
	})
	if err != nil {
		d.adapter.Close()
		return err
	}

	delay := time.Duration(d.cfg.Album.FlushDelaySeconds) * time.Second
	aggregator, err := NewAggregator(AggregatorOpts{
		Adapter: d.adapter,
		Store:   store,
		Handler: processor,
		Delay:   delay,
	})
	if err != nil {
		d.adapter.Close()
		return err
	}

	router, err := NewRouter(RouterOpts{
		Store:      store,
		Aggregator: aggregator,
		Processor:  processor,
		Adapter:    d.adapter,
		Out:        d.out,
	})
	if err != nil {
		d.adapter.Close()
		return err
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("bot: listen: %w", err)
	}

	if d.reindexer != nil && d.cfg.RAG.ReindexCron != "" {
		go d.runReindexScheduler(ctx)
	}

	fmt.Fprintf(d.out, "ImageBot online, waiting for messages\n")

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "ImageBot shutting down...\n")
			if err := d.adapter.Close(); err != nil {
				log.Printf("bot: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "ImageBot stopped\n")
			return nil

		case ev, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "ImageBot inbound channel closed\n")
				return nil
			}
			router.Handle(ctx, ev)
		}
	}
}

// runReindexScheduler fires the document reindexer on the configured cron
// schedule. A reindex failure is logged and the schedule continues.
func (d *Daemon) runReindexScheduler(ctx context.Context) {
	expr := d.cfg.RAG.ReindexCron
	next, ok := nextCronDuration(expr)
	if !ok {
		log.Printf("bot: reindex: invalid cron expression %q, scheduler disabled", expr)
		return
	}
	timer := time.NewTimer(next)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			n, err := d.reindexer.Reindex(ctx)
			if err != nil {
				log.Printf("bot: reindex: %v", err)
			} else {
				log.Printf("bot: reindex: %d chunks indexed", n)
			}
			next, ok := nextCronDuration(expr)
			if !ok {
				return
			}
			timer.Reset(next)
		}
	}
}
