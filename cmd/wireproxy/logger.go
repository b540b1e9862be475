package main

import "log"

// stdLogger writes every level to the standard library logger with a level
// prefix. It's intentionally unstructured -- good enough for a single binary
// talking to stderr, not meant to be a logging framework.
type stdLogger struct{}

func (stdLogger) Error(args ...interface{})                 { log.Println(append([]interface{}{"ERROR"}, args...)...) }
func (stdLogger) Errorf(format string, args ...interface{})  { log.Printf("ERROR "+format, args...) }
func (stdLogger) Warn(args ...interface{})                  { log.Println(append([]interface{}{"WARN"}, args...)...) }
func (stdLogger) Warnf(format string, args ...interface{})   { log.Printf("WARN "+format, args...) }
func (stdLogger) Info(args ...interface{})                  { log.Println(append([]interface{}{"INFO"}, args...)...) }
func (stdLogger) Infof(format string, args ...interface{})   { log.Printf("INFO "+format, args...) }
func (stdLogger) Debug(args ...interface{})                 { log.Println(append([]interface{}{"DEBUG"}, args...)...) }
func (stdLogger) Debugf(format string, args ...interface{})  { log.Printf("DEBUG "+format, args...) }
