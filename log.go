package breez

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/breez/breez-sdk-go/breezdb"
	"github.com/breez/breez-sdk-go/cln"
	"github.com/breez/breez-sdk-go/connect"
	"github.com/breez/breez-sdk-go/credentials"
	"github.com/breez/breez-sdk-go/fsm"
	"github.com/breez/breez-sdk-go/lnurl"
	"github.com/breez/breez-sdk-go/notifications"
	"github.com/breez/breez-sdk-go/swap"
	"github.com/breez/breez-sdk-go/syncer"
	"github.com/btcsuite/btclog"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "BRZ"

// log is a logger that is initialized with no output filters.  This means the
// package will not perform any logging by default until the caller requests
// it.
var log btclog.Logger

// The default amount of logging is none.
func init() {
	UseLogger(btclog.Disabled)
}

// DisableLog disables all library log output.  Logging output is disabled by
// default until UseLogger is called.
func DisableLog() {
	UseLogger(btclog.Disabled)
}

// UseLogger uses a specified Logger to output package logging info.  This
// should be used in preference to SetLogWriter if the caller is also using
// btclog.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// useLoggers maps every subsystem to the function installing its logger.
var useLoggers = map[string]func(btclog.Logger){
	Subsystem:               UseLogger,
	breezdb.Subsystem:       breezdb.UseLogger,
	cln.Subsystem:           cln.UseLogger,
	connect.Subsystem:       connect.UseLogger,
	credentials.Subsystem:   credentials.UseLogger,
	fsm.Subsystem:           fsm.UseLogger,
	lnurl.Subsystem:         lnurl.UseLogger,
	notifications.Subsystem: notifications.UseLogger,
	swap.Subsystem:          swap.UseLogger,
	syncer.Subsystem:        syncer.UseLogger,
}

var (
	subLoggersMu sync.Mutex
	subLoggers   = make(map[string]btclog.Logger)
)

// SetupLoggers creates a logger for every subsystem on the given backend
// and applies the debug level to all of them.
func SetupLoggers(backend *btclog.Backend, debugLevel string) error {
	subLoggersMu.Lock()
	for subsystem, useLogger := range useLoggers {
		logger := backend.Logger(subsystem)
		useLogger(logger)
		subLoggers[subsystem] = logger
	}
	subLoggersMu.Unlock()

	return ParseAndSetDebugLevels(debugLevel)
}

// SupportedSubsystems returns the sorted codes of all subsystems.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(useLoggers))
	for subsystem := range useLoggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)

	return subsystems
}

// ParseAndSetDebugLevels parses a debug level string and applies it.
// The string is either a single level for all subsystems or a comma
// separated list of <subsystem>=<level> pairs.
func ParseAndSetDebugLevels(debugLevel string) error {
	subLoggersMu.Lock()
	defer subLoggersMu.Unlock()

	// A single level applies to every subsystem.
	if !strings.Contains(debugLevel, "=") &&
		!strings.Contains(debugLevel, ",") {

		level, ok := btclog.LevelFromString(debugLevel)
		if !ok {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", debugLevel)
		}

		for _, logger := range subLoggers {
			logger.SetLevel(level)
		}

		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level contains "+
				"an invalid subsystem/level pair [%v]", pair)
		}

		subsystem, levelStr := fields[0], fields[1]
		logger, ok := subLoggers[subsystem]
		if !ok {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems are %v",
				subsystem, SupportedSubsystems())
		}

		level, ok := btclog.LevelFromString(levelStr)
		if !ok {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", levelStr)
		}

		logger.SetLevel(level)
	}

	return nil
}
