package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/carona/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_trip_events_consumed_total",
		Help: "Total trip events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_trip_events_invalid_total",
		Help: "Total invalid trip events received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis index updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

const geoKey = "corridas_geo"

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "corrida-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "carona-geo-indexer"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rc := redis.NewClient(&redis.Options{Addr: redisAddr})
	radapter := &redisAdapter{c: rc}

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			// readiness: check redis connectivity
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	log.Printf("consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		msgsConsumed.Inc()

		var evt models.TripEvent
		if err := json.Unmarshal(m.Value, &evt); err != nil || evt.Trip == nil {
			msgsInvalid.Inc()
			log.Printf("invalid trip event: %v", err)
			continue
		}

		if err := applyEventWithRetry(ctx, radapter, &evt, 3, 200*time.Millisecond); err != nil {
			redisErrors.Inc()
			log.Printf("redis index update failed for corrida=%s: %v", evt.Trip.ID, err)
			continue
		}
		redisUpdates.Inc()
	}
}

// RedisIndexer defines the small subset of redis operations we need for tests
// and production.
type RedisIndexer interface {
	GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	ZRem(ctx context.Context, key string, member string) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	_, err := r.c.GeoAdd(ctx, key, loc).Result()
	return err
}

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	_, err := r.c.HSet(ctx, key, values).Result()
	return err
}

func (r *redisAdapter) ZRem(ctx context.Context, key string, member string) error {
	// GEO sets are sorted sets underneath, so ZREM removes a member
	_, err := r.c.ZRem(ctx, key, member).Result()
	return err
}

func metaKey(id string) string { return "corrida:meta:" + id }

// applyEventWithRetry mirrors a trip event into the redis spatial index with
// retry/backoff. Cancelled or coordinate-less trips are removed; active ones
// are upserted at their origin point with bbox metadata alongside.
func applyEventWithRetry(ctx context.Context, rc RedisIndexer, evt *models.TripEvent, attempts int, delay time.Duration) error {
	t := evt.Trip
	for i := 0; i < attempts; i++ {
		var err error
		if evt.Type == "cancelled" || !t.Matchable() {
			err = rc.ZRem(ctx, geoKey, t.ID)
		} else if t.OrigemLat != nil && t.OrigemLon != nil {
			err = rc.GeoAdd(ctx, geoKey, &redis.GeoLocation{Longitude: *t.OrigemLon, Latitude: *t.OrigemLat, Name: t.ID})
			if err == nil && t.BBox.Valid {
				err = rc.HSet(ctx, metaKey(t.ID), map[string]interface{}{
					"bbox_min_lat": t.BBox.MinLat,
					"bbox_max_lat": t.BBox.MaxLat,
					"bbox_min_lon": t.BBox.MinLon,
					"bbox_max_lon": t.BBox.MaxLon,
					"distancia_m":  t.DistanciaM,
				})
			}
		} else {
			// trip lost its coordinates; drop any stale index entry
			err = rc.ZRem(ctx, geoKey, t.ID)
		}
		if err == nil {
			return nil
		}
		if i == attempts-1 {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return nil
}
