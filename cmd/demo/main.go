// Command demo drives the client view models against a configured backend:
// it loads a feed and a trip, votes, and edits the packing list, printing each view.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/content"
	"github.com/SlpAus/trailhead-backend/internal/optimistic"
	"github.com/SlpAus/trailhead-backend/internal/platform/config"
	"github.com/SlpAus/trailhead-backend/internal/platform/logging"
	"github.com/SlpAus/trailhead-backend/internal/platform/startup"
	"github.com/SlpAus/trailhead-backend/internal/ranking"
	"github.com/SlpAus/trailhead-backend/internal/trip"
	"github.com/SlpAus/trailhead-backend/internal/viewmodel"
	"github.com/SlpAus/trailhead-backend/internal/vote"
	"github.com/sirupsen/logrus"
)

func main() {
	user := flag.String("user", "demo-user", "user id to act as")
	tripID := flag.String("trip", "demo-trip", "trip whose lists are edited")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load configuration")
	}
	log := logging.New(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	app, err := startup.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer app.Close()
	coord := optimistic.New(app.BusyPolicy, log)

	// --- Feed ---
	tip, err := app.Content.Create(ctx, content.TypeTip, *user, content.Draft{
		Title: "Start before sunrise",
		Body:  "Afternoon storms build fast above the tree line.",
	})
	if err != nil {
		log.WithError(err).Fatal("create tip")
	}

	feed := viewmodel.NewFeedView(app.Content, app.Votes, coord, content.TypeTip, ranking.ModeHot, *user, log)
	if err := feed.Load(ctx); err != nil {
		log.WithError(err).Fatal("load feed")
	}
	if err := feed.Vote(ctx, tip.ID, vote.Up); err != nil {
		fmt.Println("vote reverted:", err)
	}
	for _, e := range feed.Entries() {
		fmt.Printf("%-40s score=%-3d mine=%s\n", e.Item.Title, e.Item.Score, e.MyVote)
	}

	// --- Trip ---
	list := viewmodel.NewTripListView(app.Trips, coord, *tripID, log)
	if err := list.Load(ctx); err != nil {
		log.WithError(err).Fatal("load trip")
	}
	if _, err := list.Add(ctx, trip.PackingDraft{Name: "headlamp"}); err != nil {
		fmt.Println("add failed:", err)
	}
	for _, item := range list.Packing() {
		if err := list.TogglePacked(ctx, item.ID); err != nil {
			fmt.Println("toggle failed:", err)
		}
	}
	for _, f := range list.Failures() {
		fmt.Printf("retrying %s %s\n", f.Op, f.ID)
		if err := list.Retry(ctx, f.ID); err != nil {
			fmt.Println("retry failed, dismissing:", err)
			list.Dismiss(f.ID)
		}
	}

	status := list.Status()
	fmt.Printf("packing (local=%t):\n", status.PackingLocal)
	for _, item := range list.Packing() {
		fmt.Printf("  [%s] %s x%d\n", map[bool]string{true: "x", false: " "}[item.Packed], item.Name, item.Quantity)
	}
	fmt.Printf("meals (local=%t): %d planned\n", status.MealsLocal, len(list.Meals()))
}
