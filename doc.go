// Package track is a thin client for logging machine-learning experiment
// metadata: trials, their parameters, metrics, timers and console output,
// grouped into projects and trial groups behind a pluggable storage.
//
// A minimal run looks like this:
//
//	client, err := track.NewClient(track.Options{Storage: "file://runs/${project}.json"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Arguments feed the trial hash, log them before registering the trial.
//	client.LogArguments(map[string]any{"lr": 0.1, "epochs": 10})
//	if _, err := client.SetProject("mnist", "digit classification", nil); err != nil {
//		log.Fatal(err)
//	}
//
//	client.Start()
//	for epoch := 0; epoch < 10; epoch++ {
//		client.LogMetricsStep(int64(epoch), map[string]any{"loss": train()})
//	}
//	client.Report(true)
//	client.Save("")
//
// Storage backends are selected by URI scheme: file://, memory://,
// sqlite:// and libsql://, mysql://, pebble://. The logger backend is
// selected by name, "none" by default; "otlp" pushes numeric metrics to an
// OpenTelemetry collector.
package track
