// Command hornet hosts one engine build in its own process. The server
// starts it with the mailbox file and both doorbell pipes inherited as
// file descriptors 3, 4 and 5.
package main

import (
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/DoyleJ11/duel-room-server/internal/core"
	"github.com/DoyleJ11/duel-room-server/internal/logging"
)

func main() {
	logger, err := logging.New(logging.Options{Level: envOr("LOG_LEVEL", "info")})
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	defer logger.Sync()
	logger = logger.Named("hornet").With(zap.Int("pid", os.Getpid()))

	if len(os.Args) != 2 {
		logger.Fatal("usage: hornet <engine build>")
	}

	shm := os.NewFile(3, "mailbox")
	req := os.NewFile(4, "req")
	resp := os.NewFile(5, "resp")
	if shm == nil || req == nil || resp == nil {
		logger.Fatal("missing inherited descriptors")
	}
	mem, err := unix.Mmap(int(shm.Fd()), 0, core.MailboxSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		logger.Fatal("map mailbox", zap.Error(err))
	}
	defer unix.Munmap(mem)

	engine, err := core.OpenPlugin(os.Args[1])
	if err != nil {
		logger.Fatal("load engine", zap.Error(err))
	}
	defer engine.Close()

	logger.Info("serving", zap.String("engine", engine.Path()))
	if err := core.ServeHornet(engine, mem, req, resp); err != nil {
		logger.Error("serve", zap.Error(err))
		return
	}
	logger.Info("exit")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
