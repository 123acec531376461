package gazette

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts listing pages successfully retrieved.
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gazette_pages_fetched_total",
		Help: "The total number of listing pages fetched.",
	})
	// FetchErrors counts page retrievals that failed.
	FetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gazette_fetch_errors_total",
		Help: "The total number of failed page fetches.",
	})
	// ArticlesInserted counts genuinely new articles persisted.
	ArticlesInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gazette_articles_inserted_total",
		Help: "The total number of new articles inserted.",
	})
	// ArticlesUpdated counts re-observed articles rewritten in place.
	ArticlesUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gazette_articles_updated_total",
		Help: "The total number of existing articles updated.",
	})
	// EventsPublished counts new-article events handed to the publisher.
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gazette_events_published_total",
		Help: "The total number of new-article events published.",
	})
)
