// Package trigger decides when validation runs happen outside a one-shot
// check.
//
// A Watcher follows a dataset file or workspace directory with fsnotify and
// starts a run once changes have settled. A Scheduler starts runs from a cron
// expression. Both call a RunFunc and keep going when a run fails or panics.
//
// ReportCache backs quality.WithCache so that repeated runs only evaluate
// datasets whose file or rule configuration changed:
//
//	cache := trigger.NewReportCache(256, time.Hour, metrics)
//	runner := quality.NewRunner(accessor, engine, quality.WithCache(cache, cfg.Fingerprint()))
//	w, _ := trigger.NewWatcher(path, func(ctx context.Context) error {
//		_, err := runner.Run(ctx, quality.Input{DatasetPath: path})
//		return err
//	})
//	w.Run(ctx)
package trigger
