package forge

import (
	"fmt"
	"strings"
	"time"
)

// Observability backends. Dedicated forge networks report to devinfra, everything else to intern.
const (
	internESDefaultIndex = "90037930-aafc-11ec-acce-2d961187411f"
	internESBaseURL      = "https://es.intern.aptosdev.com"
	internGrafanaBaseURL = "https://o11y.aptosdev.com/grafana/d/overview/overview?orgId=1&refresh=10s&" +
		"var-Datasource=Remote%20Prometheus%20Intern"

	devinfraESDefaultIndex = "d0bc5e20-badc-11ec-9a50-89b84ac337af"
	devinfraESBaseURL      = "https://es.devinfra.aptosdev.com"
	devinfraGrafanaBaseURL = "https://o11y.aptosdev.com/grafana/d/overview/overview?orgId=1&refresh=10s&" +
		"var-Datasource=Remote%20Prometheus%20Devinfra"

	humioNamespacePlaceholder = "$FORGE_NAMESPACE"
	humioLogsLink             = "https://cloud.us.humio.com/k8s/search?query=%24forgeLogs%28validator_insta" +
		"nce%3Dvalidator-0%29%20%7C%20$FORGE_NAMESPACE%20&live=true&start=24h&widge" +
		"tType=list-view&columns=%5B%7B%22type%22%3A%22field%22%2C%22fieldName%22%3" +
		"A%22%40timestamp%22%2C%22format%22%3A%22timestamp%22%2C%22width%22%3A180%7" +
		"D%2C%7B%22type%22%3A%22field%22%2C%22fieldName%22%3A%22level%22%2C%22forma" +
		"t%22%3A%22text%22%2C%22width%22%3A54%7D%2C%7B%22type%22%3A%22link%22%2C%22" +
		"openInNewBrowserTab%22%3Atrue%2C%22style%22%3A%22button%22%2C%22hrefTempla" +
		"te%22%3A%22https%3A%2F%2Fgithub.com%2Faptos-labs%2Faptos-core%2Fpull%2F%7B" +
		"%7Bfields%5B%5C%22github_pr%5C%22%5D%7D%7D%22%2C%22textTemplate%22%3A%22%7" +
		"B%7Bfields%5B%5C%22github_pr%5C%22%5D%7D%7D%22%2C%22header%22%3A%22Forge%2" +
		"0PR%22%2C%22width%22%3A79%7D%2C%7B%22type%22%3A%22field%22%2C%22fieldName%" +
		"22%3A%22k8s.namespace%22%2C%22format%22%3A%22text%22%2C%22width%22%3A104%7" +
		"D%2C%7B%22type%22%3A%22field%22%2C%22fieldName%22%3A%22k8s.pod_name%22%2C%" +
		"22format%22%3A%22text%22%2C%22width%22%3A126%7D%2C%7B%22type%22%3A%22field" +
		"%22%2C%22fieldName%22%3A%22k8s.container_name%22%2C%22format%22%3A%22text%" +
		"22%2C%22width%22%3A85%7D%2C%7B%22type%22%3A%22field%22%2C%22fieldName%22%3" +
		"A%22message%22%2C%22format%22%3A%22text%22%7D%5D&newestAtBottom=true&showO" +
		"nlyFirstLine=false"

	validator0Hostname = "aptos-node-0-validator-0"
)

// TimeFilter restricts an observability link to a window of time.
// It is either a RelativeTimeFilter or an AbsoluteTimeFilter.
type TimeFilter interface {
	elasticsearch() string
	grafana() string
}

// RelativeTimeFilter shows the last 15 minutes and refreshes automatically.
type RelativeTimeFilter struct{}

func (RelativeTimeFilter) elasticsearch() string {
	return "refreshInterval:(pause:!f,value:10000),time:(from:now-15m,to:now)"
}

func (RelativeTimeFilter) grafana() string {
	return "&refresh=10s&from=now-15m&to=now"
}

// AbsoluteTimeFilter shows exactly [Start, End].
type AbsoluteTimeFilter struct {
	Start time.Time
	End   time.Time
}

func (f AbsoluteTimeFilter) elasticsearch() string {
	return fmt.Sprintf(
		"refreshInterval:(pause:!t,value:0),time:(from:'%s',to:'%s')",
		esTimestamp(f.Start), esTimestamp(f.End),
	)
}

func (f AbsoluteTimeFilter) grafana() string {
	return fmt.Sprintf("&from=%d&to=%d", f.Start.UnixMilli(), f.End.UnixMilli())
}

// esTimestamp always reports zero milliseconds.
func esTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + ".000Z"
}

// ValidatorLogsLink links to the logs of validator 0 of the given network.
func ValidatorLogsLink(namespace string, chainName string, filter TimeFilter) string {
	esBaseURL, esDefaultIndex := internESBaseURL, internESDefaultIndex
	if strings.Contains(chainName, forgeMarker) {
		esBaseURL, esDefaultIndex = devinfraESBaseURL, devinfraESDefaultIndex
	}

	phrase := func(key string, value string) string {
		return fmt.Sprintf(
			"('$state':(store:appState),meta:(alias:!n,disabled:!f,index:'%s',key:%s,negate:!f,"+
				"params:(query:%s),type:phrase),query:(match_phrase:(%s:%s)))",
			esDefaultIndex, key, value, key, value,
		)
	}
	filters := strings.Join([]string{
		phrase("chain_name", chainName),
		phrase("namespace", namespace),
		phrase("hostname", validator0Hostname),
	}, ",")

	link := fmt.Sprintf(
		"%s/_dashboards/app/discover#/?_g=(filters:!(),%s)&_a=(columns:!(_source),filters:!(%s),"+
			"index:'%s',interval:auto,query:(language:kuery,query:''),sort:!())",
		esBaseURL, filter.elasticsearch(), filters, esDefaultIndex,
	)
	return strings.NewReplacer(" ", "", "\n", "").Replace(link)
}

// DashboardLink links to the grafana overview dashboard of the given network.
func DashboardLink(clusterName string, namespace string, chainName string, filter TimeFilter) string {
	baseURL := internGrafanaBaseURL
	if strings.Contains(clusterName, forgeMarker) {
		baseURL = devinfraGrafanaBaseURL
	}
	return fmt.Sprintf("%s&var-namespace=%s&var-chain_name=%s%s", baseURL, namespace, chainName, filter.grafana())
}

// HumioLogsLink links to a live humio search over the given namespace.
func HumioLogsLink(namespace string) string {
	return strings.ReplaceAll(humioLogsLink, humioNamespacePlaceholder, namespace)
}
