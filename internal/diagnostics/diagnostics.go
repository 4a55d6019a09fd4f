// Package diagnostics implements the Diagnostics Collector (spec.md §4.7):
// on failure, a best-effort parallel capture of console log, network log,
// DOM snapshot, and screenshot. Every probe's failure is silently absorbed
// — diagnostic capture must never shadow the primary failure reason.
package diagnostics

import (
	"context"
	"sort"
	"sync"

	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/model"
)

// Bundle is the best-effort diagnostic payload attached to a Failed result.
type Bundle struct {
	ConsoleLog []model.ConsoleEntry
	NetworkLog []model.NetworkEntry
	DomSnapshot string
	Screenshot  string
}

// Capture runs all four probes concurrently against drv and absorbs any
// individual probe's error, per spec.md §4.7.
func Capture(ctx context.Context, drv driver.Driver) Bundle {
	var (
		wg     sync.WaitGroup
		bundle Bundle
	)
	wg.Add(4)

	go func() {
		defer wg.Done()
		if msgs, err := drv.GetConsoleMessages(ctx); err == nil {
			bundle.ConsoleLog = driver.ToConsoleEntries(msgs)
		}
	}()
	go func() {
		defer wg.Done()
		if resps, err := drv.GetNetworkResponses(ctx); err == nil {
			bundle.NetworkLog = driver.ToNetworkEntries(resps)
		}
	}()
	go func() {
		defer wg.Done()
		if dom, err := drv.GetDomSnapshot(ctx); err == nil {
			bundle.DomSnapshot = dom
		}
	}()
	go func() {
		defer wg.Done()
		if shot, err := drv.CaptureScreenshot(ctx); err == nil {
			bundle.Screenshot = shot
		}
	}()

	wg.Wait()

	sort.Slice(bundle.ConsoleLog, func(i, j int) bool {
		return bundle.ConsoleLog[i].Timestamp.After(bundle.ConsoleLog[j].Timestamp)
	})
	sort.Slice(bundle.NetworkLog, func(i, j int) bool {
		return bundle.NetworkLog[i].Timestamp.After(bundle.NetworkLog[j].Timestamp)
	})

	return bundle
}
