package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coverstack/rating-engine/internal/core"
	"github.com/coverstack/rating-engine/internal/platform/config"
	"github.com/coverstack/rating-engine/internal/platform/logging"
	"github.com/coverstack/rating-engine/internal/store/mongo"
	"github.com/coverstack/rating-engine/internal/store/mysql"
)

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.Env)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var catalog core.CatalogRepo
	var factors core.FactorRepo

	switch cfg.DBType {
	case "mysql":
		client, err := mysql.NewClient(cfg.MySQLDSN,
			time.Duration(cfg.StoreConnectTimeoutSec)*time.Second)
		if err != nil {
			log.Error("failed to connect to MySQL", "err", err)
			os.Exit(1)
		}
		defer client.Close()
		if err := client.Migrate(); err != nil {
			log.Error("migration failed", "err", err)
			os.Exit(1)
		}
		catalog = mysql.NewCatalogRepo(client)
		factors = mysql.NewFactorRepo(client)

	case "mongo":
		client, err := mongo.NewClient(cfg)
		if err != nil {
			log.Error("failed to connect to MongoDB", "err", err)
			os.Exit(1)
		}
		defer client.Close(ctx)
		if err := mongo.EnsureIndexes(ctx, client.DB); err != nil {
			log.Error("index creation failed", "err", err)
			os.Exit(1)
		}
		opTimeout := time.Duration(cfg.StoreOpTimeoutMs) * time.Millisecond
		catalog = mongo.NewCatalogRepo(client.DB, opTimeout)
		factors = mongo.NewFactorRepo(client.DB, opTimeout)

	default:
		log.Error("seeding supports mysql and mongo backends", "db_type", cfg.DBType)
		os.Exit(1)
	}

	log.Info("seeding catalog")
	seedPackages(ctx, catalog)
	seedFactors(ctx, factors)
	log.Info("done seeding")
}

func seedPackages(ctx context.Context, repo core.CatalogRepo) {
	packages := []core.Package{
		{
			ID:        "pkg-pa-standard",
			ProductID: "PA_STANDARD",
			Name:      "Personal Accident Standard",
			Rate:      1.00,
			RateType:  core.RateTypeFlat,
			Currency:  "USD",
			Benefits:  []string{"accidental_death", "permanent_disability"},
			Limits: map[string]string{
				core.LimitMinAge: "18",
				core.LimitMaxAge: "65",
			},
		},
		{
			ID:        "pkg-pa-family",
			ProductID: "PA_FAMILY",
			Name:      "Personal Accident Family",
			Rate:      2.50,
			RateType:  core.RateTypeFlat,
			Currency:  "USD",
			Benefits:  []string{"accidental_death", "permanent_disability", "family_income"},
			Limits: map[string]string{
				core.LimitMinAge: "18",
				core.LimitMaxAge: "60",
			},
		},
		{
			ID:             "pkg-home-contents",
			ProductID:      "HOME_CONTENTS",
			Name:           "Home Contents Cover",
			Rate:           0.75,
			RateType:       core.RateTypePercentage,
			Currency:       "USD",
			MinimumPremium: 25.00,
			Benefits:       []string{"fire", "theft", "water_damage"},
		},
	}

	for _, p := range packages {
		if err := repo.UpsertPackage(ctx, p); err != nil {
			fmt.Printf("failed to seed package %s: %v\n", p.ID, err)
		} else {
			fmt.Printf("seeded package: %s\n", p.Name)
		}
	}
}

func seedFactors(ctx context.Context, repo core.FactorRepo) {
	factors := []core.RatingFactor{
		{
			ID:         "fct-pa-std-age-3145",
			ProductID:  "PA_STANDARD",
			Kind:       core.FactorAgeBand,
			Key:        "31-45",
			Multiplier: 1.2,
			Position:   1,
		},
		{
			ID:         "fct-pa-std-age-4660",
			ProductID:  "PA_STANDARD",
			Kind:       core.FactorAgeBand,
			Key:        "46-60",
			Multiplier: 1.5,
			Position:   2,
		},
		{
			ID:        "fct-pa-fam-size",
			ProductID: "PA_FAMILY",
			Kind:      core.FactorFamilySize,
			Key:       "per_extra_member",
			Addition:  0.50,
			Position:  1,
		},
		{
			ID:         "fct-pa-fam-cover-plus",
			ProductID:  "PA_FAMILY",
			Kind:       core.FactorCoverType,
			Key:        "PLUS",
			Multiplier: 1.25,
			Position:   2,
		},
	}

	for _, f := range factors {
		if err := repo.Upsert(ctx, f); err != nil {
			fmt.Printf("failed to seed factor %s: %v\n", f.ID, err)
		} else {
			fmt.Printf("seeded factor: %s %s\n", f.Kind, f.Key)
		}
	}
}
