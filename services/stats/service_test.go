package stats_test

import (
	"io/ioutil"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streamwatch/streamwatch/services/httpd/httpdtest"
	"github.com/streamwatch/streamwatch/services/stats"
	"github.com/stretchr/testify/require"
)

type diagnostic struct{}

func (diagnostic) Error(msg string, err error) {}

func TestService_Metrics(t *testing.T) {
	ts := httpdtest.NewServer(false)
	defer ts.Close()

	srv := stats.NewService(stats.NewConfig(), diagnostic{})
	srv.HTTPDService = ts

	created := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamwatch",
		Subsystem: "conditions",
		Name:      "created_total",
		Help:      "Number of alert conditions created.",
	})
	srv.MustRegister(created)
	created.Add(3)

	require.NoError(t, srv.Open())
	defer srv.Close()

	resp, err := http.Get(ts.Server.URL + "/streamwatch/v1/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	if !strings.Contains(body, "streamwatch_conditions_created_total 3") {
		t.Errorf("missing application counter in scrape output:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("missing go runtime collector in scrape output")
	}
	if !strings.Contains(body, "process_") && !strings.Contains(body, "go_memstats") {
		t.Error("missing process and memstats collectors in scrape output")
	}
}
