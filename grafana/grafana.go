package grafana

import (
	"context"
	"net/http"

	"github.com/K-Phoen/grabana"
	"github.com/K-Phoen/grabana/axis"
	"github.com/K-Phoen/grabana/graph"
	"github.com/K-Phoen/grabana/row"
	"github.com/K-Phoen/grabana/singlestat"
	"github.com/K-Phoen/grabana/target/prometheus"
	"github.com/K-Phoen/grabana/variable/interval"
)

var (
	folderName = "Cubeclient"
)

// DashboardCreator cubeclient grafana dashboard creator
type DashboardCreator struct {
	cli        *grabana.Client
	dataSource string
}

// NewDashboardCreator returns a dashboard creator
func NewDashboardCreator(grafana, apiKey, dataSource string) *DashboardCreator {
	return &DashboardCreator{
		cli:        grabana.NewClient(http.DefaultClient, grafana, apiKey),
		dataSource: dataSource,
	}
}

// Create create dashboard
func (c *DashboardCreator) Create() error {
	folder, err := c.createFolder()
	if err != nil {
		return err
	}

	return c.createBatcherDashboard(folder)
}

func (c *DashboardCreator) createFolder() (*grabana.Folder, error) {
	folder, err := c.cli.GetFolderByTitle(context.Background(), folderName)
	if err != nil && err != grabana.ErrFolderNotFound {
		return nil, err
	}

	if folder == nil {
		folder, err = c.cli.CreateFolder(context.Background(), folderName)
		if err != nil {
			return nil, err
		}
	}

	return folder, nil
}

func (c *DashboardCreator) createBatcherDashboard(folder *grabana.Folder) error {
	db := grabana.NewDashboardBuilder("Batcher Status",
		grabana.AutoRefresh("5s"),
		grabana.Tags([]string{"generated"}),
		grabana.VariableAsInterval(
			"interval",
			interval.Values([]string{"30s", "1m", "5m", "10m", "30m", "1h", "6h", "12h"}),
		),
		c.overviewRow(),
		c.opsRow(),
		c.rpcRow(),
		c.latencyRow())

	_, err := c.cli.UpsertDashboard(context.Background(), folder, db)
	return err
}

func (c *DashboardCreator) overviewRow() grabana.DashboardBuilderOption {
	return grabana.Row(
		"Overview status",
		row.WithSingleStat(
			"Inflight operations",
			singlestat.Height("200px"),
			singlestat.Span(6),
			singlestat.WithPrometheusTarget(
				"sum(cubeclient_batcher_inflight_ops)"),
		),
		row.WithSingleStat(
			"Pending rpcs",
			singlestat.Height("200px"),
			singlestat.Span(6),
			singlestat.WithPrometheusTarget(
				"sum(cubeclient_batcher_pending_rpcs)"),
		),
	)
}

func (c *DashboardCreator) opsRow() grabana.DashboardBuilderOption {
	return grabana.Row(
		"Operations status",
		c.withGraph("Operations admitted", 4,
			"sum(rate(cubeclient_batcher_ops_added_total[$interval])) by (instance)",
			"{{ instance }}"),
		c.withGraph("Operations failed", 4,
			"sum(rate(cubeclient_batcher_ops_failed_total[$interval])) by (reason)",
			"{{ reason }}"),
		c.withGraph("Flushes", 4,
			"sum(rate(cubeclient_batcher_flush_total[$interval])) by (status)",
			"{{ status }}"),
	)
}

func (c *DashboardCreator) rpcRow() grabana.DashboardBuilderOption {
	return grabana.Row(
		"Rpc status",
		c.withGraph("Rpcs sent", 6,
			"sum(rate(cubeclient_batcher_rpc_sent_total[$interval])) by (type)",
			"{{ type }}"),
		c.withGraph("99% batch size", 6,
			`histogram_quantile(0.99, sum(rate(cubeclient_batcher_batch_size_ops_bucket[$interval])) by (le, instance))`,
			"{{ instance }}", axis.Min(0)),
	)
}

func (c *DashboardCreator) latencyRow() grabana.DashboardBuilderOption {
	return grabana.Row(
		"Flush latency",
		c.withGraph("50% flush time", 4,
			`histogram_quantile(0.50, sum(rate(cubeclient_batcher_flush_duration_seconds_bucket[$interval])) by (le, instance))`,
			"{{ instance }}", axis.Unit("s"), axis.Min(0)),
		c.withGraph("99% flush time", 4,
			`histogram_quantile(0.99, sum(rate(cubeclient_batcher_flush_duration_seconds_bucket[$interval])) by (le, instance))`,
			"{{ instance }}", axis.Unit("s"), axis.Min(0)),
		c.withGraph("99.99% flush time", 4,
			`histogram_quantile(0.9999, sum(rate(cubeclient_batcher_flush_duration_seconds_bucket[$interval])) by (le, instance))`,
			"{{ instance }}", axis.Unit("s"), axis.Min(0)),
	)
}

func (c *DashboardCreator) withGraph(title string, span float32, pql string, legend string, opts ...axis.Option) row.Option {
	return row.WithGraph(
		title,
		graph.Span(span),
		graph.Height("400px"),
		graph.DataSource(c.dataSource),
		graph.WithPrometheusTarget(
			pql,
			prometheus.Legend(legend),
		),
		graph.LeftYAxis(opts...),
	)
}
