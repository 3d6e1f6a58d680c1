// Package internaldefs holds the metric names, help strings and bucket bounds
// shared by the Prometheus and OTel exporters, plus [Collect], which turns one
// Engine snapshot into the ordered families both exporters write.
//
// It must not import an exporter package or perform I/O.
package internaldefs
