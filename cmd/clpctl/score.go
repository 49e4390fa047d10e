package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	domrepo "ClpWatch/internal/domain/repository"
	"ClpWatch/internal/services/scoring"
	"ClpWatch/internal/usecase"

	"github.com/spf13/cobra"
)

type scoreOptions struct {
	file        string
	symbol      string
	interval    string
	zwin        int
	sensitivity string
	policy      string
	wFunding    float64
	wOI         float64
	wAbsRet     float64
	pStress     float64
	pExtreme    float64
	kStress     float64
	kExtreme    float64
	asJSON      bool

	// changed reports whether a flag was set on the command line.
	changed func(name string) bool
}

func newScoreCmd() *cobra.Command {
	o := &scoreOptions{}
	def := usecase.DefaultRunParams()
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score an aligned CSV series",
		Long: `Score an aligned series offline and print the latest snapshot with its insights.

The CSV needs the columns time,close,funding,oi. Empty funding or oi cells are undefined.

Examples:
  clpctl score --file btc.csv --symbol BTCUSDT
  clpctl score --file btc.csv --sensitivity High --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o.changed = cmd.Flags().Changed
			return runScore(cmd.OutOrStdout(), o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.file, "file", "f", "", "aligned CSV series (required)")
	f.StringVar(&o.symbol, "symbol", "OFFLINE", "instrument label")
	f.StringVar(&o.interval, "interval", string(def.Interval), "bar interval (5m|15m|1h|4h|1d)")
	f.IntVar(&o.zwin, "zwin", def.ZWindow, "rolling z-score window")
	f.StringVar(&o.sensitivity, "sensitivity", "", "preset (Low|Medium|High) for zwin, policy and threshold params; explicit flags win")
	f.StringVar(&o.policy, "policy", string(def.Policy), "threshold policy (percentile|std)")
	f.Float64Var(&o.wFunding, "w-funding", def.Weights.Funding, "funding weight")
	f.Float64Var(&o.wOI, "w-oi", def.Weights.OI, "open interest weight")
	f.Float64Var(&o.wAbsRet, "w-absret", def.Weights.AbsReturn, "absolute return weight")
	f.Float64Var(&o.pStress, "p-stress", def.Thresholds.PStress, "stress quantile (percentile policy)")
	f.Float64Var(&o.pExtreme, "p-extreme", def.Thresholds.PExtreme, "extreme quantile (percentile policy)")
	f.Float64Var(&o.kStress, "k-stress", def.Thresholds.KStress, "stress sigma multiple (std policy)")
	f.Float64Var(&o.kExtreme, "k-extreme", def.Thresholds.KExtreme, "extreme sigma multiple (std policy)")
	f.BoolVar(&o.asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (o *scoreOptions) params() (usecase.RunParams, error) {
	set := o.changed
	if set == nil {
		set = func(string) bool { return true }
	}
	var ov usecase.Overrides
	if set("zwin") {
		ov.ZWindow = o.zwin
	}
	if set("policy") {
		ov.Policy = scoring.Policy(o.policy)
	}
	pick := func(name string, v *float64) *float64 {
		if set(name) {
			return v
		}
		return nil
	}
	ov.PStress = pick("p-stress", &o.pStress)
	ov.PExtreme = pick("p-extreme", &o.pExtreme)
	ov.KStress = pick("k-stress", &o.kStress)
	ov.KExtreme = pick("k-extreme", &o.kExtreme)

	p := usecase.DefaultRunParams()
	p.Interval = domrepo.Interval(o.interval)
	p.Weights = scoring.Weights{Funding: o.wFunding, OI: o.wOI, AbsReturn: o.wAbsRet}
	p, err := p.Resolve(o.sensitivity, ov)
	if err != nil {
		return p, err
	}
	return p.Prepare()
}

func runScore(w io.Writer, o *scoreOptions) error {
	p, err := o.params()
	if err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	fh, err := os.Open(o.file)
	if err != nil {
		return err
	}
	defer fh.Close()

	symbol := strings.ToUpper(strings.TrimSpace(o.symbol))
	s, err := readSeries(fh, symbol, string(p.Interval))
	if err != nil {
		return fmt.Errorf("read %s: %w", o.file, err)
	}
	p.Lookback = s.Len()

	res, err := usecase.ScoreSeries(s, p)
	if err != nil {
		return fmt.Errorf("score %s: %w", symbol, err)
	}
	ins := res.Insights()

	if o.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Snapshot   any `json:"snapshot"`
			Thresholds any `json:"thresholds"`
			Insights   any `json:"insights"`
		}{res.Snapshot, res.Thresholds, ins})
	}

	sn := res.Snapshot
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "symbol\t%s\n", sn.Symbol)
	fmt.Fprintf(tw, "time\t%s\n", sn.Timestamp.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(tw, "scored rows\t%d\n", res.Series.Len())
	fmt.Fprintf(tw, "clp\t%.3f\n", sn.CLP)
	fmt.Fprintf(tw, "regime\t%s\n", sn.Regime)
	fmt.Fprintf(tw, "thresholds\tstress %.3f / extreme %.3f\n", sn.StressThr, sn.ExtremeThr)
	fmt.Fprintf(tw, "streak\t%d bars (~%d min)\n", ins.Streak.Bars, ins.Streak.Minutes)
	if ins.TopContributor != "" {
		fmt.Fprintf(tw, "top contributor\t%s\n", ins.TopContributor)
	}
	for _, row := range ins.TimeShare {
		fmt.Fprintf(tw, "share %s\t%.1f%%\n", row.Regime, row.Pct)
	}
	return tw.Flush()
}
