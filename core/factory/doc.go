// Package factory provides a small generic registry used to instantiate pluggable
// modules such as metrics sinks from configuration. A module is named by
// a type string and carries a map of raw settings that the factory decodes into
// its own typed struct.
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	_ = reg.Register("influx", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c struct{ URL string `json:"url"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newInflux(c.URL), nil
//	})
package factory
