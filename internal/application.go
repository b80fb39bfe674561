package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-arena/internal/config"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository/memory"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
	"github.com/rocketscienceinc/tictactoe-arena/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-arena/transport/rest"
	"github.com/rocketscienceinc/tictactoe-arena/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application until SIGINT or SIGTERM.
func RunApp(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rooms, closeRooms, err := newRoomService(ctx, logger, conf)
	if err != nil {
		return err
	}
	defer closeRooms()

	db, err := storage.NewSQLite(logger, conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite storage: %w", err)
	}

	defer func() {
		if err = db.Close(); err != nil {
			log.Error("could not close sqlite storage", "error", err)
		}
	}()

	results := repository.NewResultRepository(db)
	bot := service.NewBotService(service.WithOpeningShortcut(conf.Game.HardOpeningShortcut))
	sessions := usecase.NewSessionController(logger, bot, rooms, results,
		usecase.WithThinkTime(conf.Game.ThinkTime),
		usecase.WithPollInterval(conf.Game.PollInterval),
	)

	group, ctx := errgroup.WithContext(ctx)

	router := rest.NewRouter(ctx, logger, rest.Deps{
		Sessions: sessions,
		Registry: usecase.NewSessionRegistry(),
		Rooms:    rooms,
		Stats:    results,
		Watch:    websocket.New(logger, rooms, conf.Game.PollInterval),
	})

	group.Go(func() error {
		return rest.Start(ctx, logger, conf.HTTPPort, router)
	})

	if err = group.Wait(); err != nil {
		return fmt.Errorf("application stopped: %w", err)
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

// RunReap removes stale and expired rooms once and reports how many were removed.
func RunReap(ctx context.Context, logger *slog.Logger, conf *config.Config) (int, error) {
	rooms, closeRooms, err := newRoomService(ctx, logger, conf)
	if err != nil {
		return 0, err
	}
	defer closeRooms()

	removed, err := rooms.Reap(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reap rooms: %w", err)
	}

	return removed, nil
}

// newRoomService builds the room coordinator on the configured store. The returned func releases it.
func newRoomService(ctx context.Context, logger *slog.Logger, conf *config.Config) (service.RoomService, func(), error) {
	log := logger.With("component", "app")

	opts := []service.RoomOption{
		service.WithStaleAfter(conf.Game.StaleAfter),
		service.WithFinishedRetention(conf.Game.FinishedRetention),
	}

	if conf.Storage == config.StorageMemory {
		log.Warn("using in-memory room storage, rooms are not shared between instances")

		rooms := service.NewRoomService(logger, memory.NewMatchRepository(), memory.NewHistoryRepository(), memory.NewLocker(), opts...)

		return rooms, func() {}, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if conf.Redis.Host == "" {
		return nil, nil, ErrAddrNotFound
	}

	client, err := storage.NewRedis(ctx, redisAddrString)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	closeClient := func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Error("could not close redis storage", "error", closeErr)
		}
	}

	rooms := service.NewRoomService(logger,
		repository.NewMatchRepository(client),
		repository.NewHistoryRepository(client),
		repository.NewRedisLocker(logger, client, conf.Redis.LockTTL),
		opts...,
	)

	return rooms, closeClient, nil
}
