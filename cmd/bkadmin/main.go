package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"barkeep/internal/config"
	"barkeep/internal/economy"
	"barkeep/internal/narrate"
	"barkeep/internal/store/pgstore"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
)

func main() {
	root := &cobra.Command{
		Use:          "bkadmin",
		Short:        "Barkeep operator tools",
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newForgeCmd(),
		newLeaderboardCmd(),
		newInventoryCmd(),
		newTreasuresCmd(),
	)

	if err := root.Execute(); err != nil {
		danger.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openEngine wires a postgres-backed engine for one-shot admin commands.
func openEngine(ctx context.Context) (*economy.Engine, economy.Repos, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, economy.Repos{}, nil, err
	}
	pool, err := pgstore.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, economy.Repos{}, nil, err
	}
	store := pgstore.New(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, economy.Repos{}, nil, err
	}
	repos := store.Repos()

	rng := economy.NewRandomizer()
	narrator, err := narrate.New(rng)
	if err != nil {
		pool.Close()
		return nil, economy.Repos{}, nil, err
	}
	engine := economy.NewEngine(repos, rng, narrator, nil, economy.Config{
		TheftCooldown: cfg.TheftCooldown,
		PlayCooldown:  cfg.PlayCooldown,
		FilterExpiry:  cfg.FilterExpiry,
		MaxItems:      cfg.MaxItems,
		MaxBeverages:  cfg.MaxBeverages,
		StealOdds:     cfg.StealOdds,
		Reserved:      cfg.ReservedNames(),
	})
	return engine, repos, pool.Close, nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			_, _, closeFn, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			success.Println("schema up to date")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed a handful of starter items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			engine, _, closeFn, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			keeper, err := engine.EnsureActor(ctx, "eleanor nobody", "")
			if err != nil {
				return err
			}
			seed := []string{"brass lamp", "rubber chicken", "skeleton key", "fruitcake", "tarnished spyglass"}
			created := 0
			for _, name := range seed {
				if _, err := engine.Ledger().CreateItem(ctx, name, keeper.ID, keeper.ID); err != nil {
					warn.Printf("skipped %s: %v\n", name, err)
					continue
				}
				created++
			}
			success.Printf("seeded %d items for %s\n", created, keeper.Name)
			return nil
		},
	}
}

func newForgeCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "forge <name>",
		Short: "Forge a treasure from the console",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			engine, _, closeFn, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			actor, err := engine.EnsureActor(ctx, owner, "")
			if err != nil {
				return err
			}
			res, err := engine.Forge(ctx, actor, joinArgs(args), true)
			if err != nil {
				return err
			}
			if !res.Mutated {
				warn.Println(res.Message)
				return nil
			}
			success.Println(res.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "eleanor nobody", "actor who will hold the treasure")
	return cmd
}

func newLeaderboardCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show top scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			_, repos, closeFn, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			actors, err := repos.Actors.TopByScore(ctx, limit)
			if err != nil {
				return err
			}
			accent.Println("rank  score  name")
			for i, a := range actors {
				fmt.Printf("%4d  %5d  %s\n", i+1, a.Score, a.Name)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "rows to show")
	return cmd
}

func newInventoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inventory <name>",
		Short: "Show what an actor is carrying",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			engine, repos, closeFn, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			actor, err := repos.Actors.ByName(ctx, joinArgs(args))
			if err != nil {
				return err
			}
			line, err := engine.Inventory(ctx, actor)
			if err != nil {
				return err
			}
			fmt.Println(line)
			fmt.Println(engine.ScoreReport(actor) + ".")
			return nil
		},
	}
}

func newTreasuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "treasures",
		Short: "List every treasure and its holder",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			_, repos, closeFn, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			treasures, err := repos.Treasures.List(ctx)
			if err != nil {
				return err
			}
			for _, t := range treasures {
				holder := "no one"
				if a, err := repos.Actors.ByID(ctx, t.OwnerID); err == nil {
					holder = a.Name
				}
				fmt.Printf("%-24s held by %s\n", t.Name, holder)
			}
			return nil
		},
	}
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
