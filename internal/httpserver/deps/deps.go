package deps

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/operatornet/fedgate/internal/ledger"
	"github.com/operatornet/fedgate/internal/logger"
	"github.com/operatornet/fedgate/internal/query"
	"github.com/operatornet/fedgate/internal/submitter"
	"github.com/operatornet/fedgate/internal/subscription"
)

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	DomainRole    string                 // consumer or provider
	Node          ledger.Node            // ledger access, embedded or remote
	Submitter     *submitter.Submitter   // signed write path
	Facade        *query.Facade          // read path
	Registry      *subscription.Registry // webhook registrations
	LedgerHandler http.Handler           // non-nil when the embedded node is exposed under /ledger
	RedisClient   *redis.Client          // nil when persistence is disabled
}
