package app

// Compiled-in modules. Each registers itself with core in init.
import (
	_ "github.com/flemzord/tgrelay/internal/gateway"
	_ "github.com/flemzord/tgrelay/internal/relay"
	_ "github.com/flemzord/tgrelay/internal/telemetry"
	_ "github.com/flemzord/tgrelay/modules/channel/telegram"
	_ "github.com/flemzord/tgrelay/modules/store/postgres"
	_ "github.com/flemzord/tgrelay/modules/store/sqlite"
)
