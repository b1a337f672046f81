// Package log provides the logging abstraction used by studykit components.
//
// Components depend on the Logger interface only. Two implementations are
// provided: a zerolog adapter for real output and a no-op logger for tests
// and for embedders that do not want any output.
//
// # Usage
//
//	logger := log.NewZerologAdapter()
//	logger.Info("study ready", log.String("variation", "control"))
//
// The verbosity of a study is carried by its descriptor as a numeric log
// level. Use LevelFromStudy to translate it:
//
//	logger := log.NewZerologAdapterWithLevel(log.LevelFromStudy(desc.LogLevel))
package log
