// Package watcher watches descriptor directories and the dynamic catalog
// and turns bursts of file changes into paced reindex triggers.
//
// Raw fsnotify events are debounced per path, filtered to descriptor files
// and handed to a Handler at most once per MinInterval:
//
//	w, err := watcher.New(watcher.DefaultOptions(), func(ctx context.Context, events []watcher.FileEvent) {
//	    svc.RequestReindex(req, nil)
//	})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx, descriptorDir)
package watcher
