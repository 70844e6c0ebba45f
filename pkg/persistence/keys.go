package persistence

import "fmt"

func catalogKey(name string) string  { return name + ".catalog.json" }
func manifestKey(name string) string { return name + ".manifest.json" }
func indexKey(name string) string    { return name + ".index" }
func headKey(name string) string     { return name + ".head.json" }
func walKey(name string) string      { return name + ".wal" }

func segmentName(collection string, epoch uint64, ordinal int) string {
	return fmt.Sprintf("%s-%d-%05d", collection, epoch, ordinal)
}
