package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DatasetLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_dataset_loads_total",
		Help: "The total number of dataset loads",
	}, []string{"status"})

	DatasetLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inspector_dataset_load_duration_seconds",
		Help:    "Duration of dataset loads from disk",
		Buckets: prometheus.DefBuckets,
	})

	PipelineOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_pipeline_operations_total",
		Help: "The total number of filter/sort/update operations",
	}, []string{"operation", "status"})

	ExpressionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_expression_errors_total",
		Help: "Distinct per-batch expression evaluation failures",
	}, []string{"operation"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inspector_llm_request_duration_seconds",
		Help:    "Duration of generation backend requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspector_llm_retries_total",
		Help: "The total number of generation backend retries",
	})

	ExportedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspector_exported_records_total",
		Help: "The total number of records written by dataset exports",
	})
)
