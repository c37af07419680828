// Package metrics records transcription metrics two ways: CloudWatch Embedded
// Metrics Format (EMF) documents written as single JSON lines, which CloudWatch
// Logs extracts when running in Lambda, and Prometheus collectors served by the
// local web server.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Namespace is the CloudWatch namespace for all transcription metrics.
const Namespace = "GeminiTranscriber"

// CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

// awsMetadata is the _aws block EMF requires.
type awsMetadata struct {
	Timestamp         int64             `json:"Timestamp"`
	CloudWatchMetrics []metricDirective `json:"CloudWatchMetrics"`
}

type metricDirective struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Recorder collects one EMF document. Create one per operation; it is not
// safe for concurrent use.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	units      map[string]string
	values     map[string]float64
	properties map[string]any
}

var (
	lambdaFunction = os.Getenv("AWS_LAMBDA_FUNCTION_NAME")

	outputMu sync.Mutex
	output   io.Writer = os.Stdout
)

// SetOutput redirects EMF documents. The CLI discards them unless asked,
// since its stdout is meant for people.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	output = w
}

// New creates a Recorder for namespace. Inside Lambda the FunctionName
// dimension is added automatically.
func New(namespace string) *Recorder {
	r := &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		units:      make(map[string]string),
		values:     make(map[string]float64),
		properties: make(map[string]any),
	}
	if lambdaFunction != "" {
		r.dimensions["FunctionName"] = lambdaFunction
	}
	return r
}

// Dimension adds a filterable dimension.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records value under name with a CloudWatch unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.units[name] = unit
	r.values[name] = value
	return r
}

// Count records name = 1.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property adds a searchable field that is not a metric.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// document assembles the EMF JSON object, or nil when there is nothing to emit.
func (r *Recorder) document(now time.Time) map[string]any {
	if len(r.values) == 0 {
		return nil
	}

	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]metricDef, 0, len(names))
	for _, name := range names {
		defs = append(defs, metricDef{Name: name, Unit: r.units[name]})
	}

	dimKeys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		dimKeys = append(dimKeys, k)
	}
	sort.Strings(dimKeys)

	doc := make(map[string]any, len(r.properties)+len(r.dimensions)+len(r.values)+1)
	for k, v := range r.properties {
		doc[k] = v
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}
	doc["_aws"] = awsMetadata{
		Timestamp: now.UnixMilli(),
		CloudWatchMetrics: []metricDirective{{
			Namespace:  r.namespace,
			Dimensions: [][]string{dimKeys},
			Metrics:    defs,
		}},
	}
	return doc
}

// Flush writes the document as one line. A Recorder without metrics writes
// nothing. Do not reuse a Recorder after Flush.
func (r *Recorder) Flush() {
	doc := r.document(time.Now())
	if doc == nil {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: marshal metrics: %v\n", err)
		return
	}

	outputMu.Lock()
	defer outputMu.Unlock()
	fmt.Fprintln(output, string(data))
}
