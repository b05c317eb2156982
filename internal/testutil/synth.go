// Package testutil 生成测试用的合成交易数据。
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rushteam/fraudkit/core"
)

// Clock 合成数据使用的固定“当前时间”
var Clock = time.Date(2020, 6, 21, 12, 0, 0, 0, time.UTC)

// Now 返回 Clock，可直接作为 feature.NewDeriver 的时钟
func Now() time.Time { return Clock }

var columns = []core.Column{
	{Name: "Unnamed: 0", Kind: core.KindNumeric},
	{Name: "trans_date_trans_time", Kind: core.KindCategorical},
	{Name: "cc_num", Kind: core.KindNumeric},
	{Name: "merchant", Kind: core.KindCategorical},
	{Name: "category", Kind: core.KindCategorical},
	{Name: "amt", Kind: core.KindNumeric},
	{Name: "first", Kind: core.KindCategorical},
	{Name: "last", Kind: core.KindCategorical},
	{Name: "gender", Kind: core.KindCategorical},
	{Name: "street", Kind: core.KindCategorical},
	{Name: "city", Kind: core.KindCategorical},
	{Name: "state", Kind: core.KindCategorical},
	{Name: "zip", Kind: core.KindNumeric},
	{Name: "lat", Kind: core.KindNumeric},
	{Name: "long", Kind: core.KindNumeric},
	{Name: "city_pop", Kind: core.KindNumeric},
	{Name: "job", Kind: core.KindCategorical},
	{Name: "dob", Kind: core.KindCategorical},
	{Name: "trans_num", Kind: core.KindCategorical},
	{Name: "unix_time", Kind: core.KindNumeric},
	{Name: "merch_lat", Kind: core.KindNumeric},
	{Name: "merch_long", Kind: core.KindNumeric},
	{Name: "is_fraud", Kind: core.KindNumeric},
}

var (
	merchants     = []string{"fraud_Rippin", "fraud_Heller", "fraud_Lind", "fraud_Kutch", "fraud_Keeling"}
	legitCategory = []string{"grocery_pos", "gas_transport", "home", "kids_pets", "food_dining"}
	fraudCategory = []string{"shopping_net", "misc_net", "grocery_pos"}
	jobs          = []string{"Psychologist", "Surveyor", "Engineer", "Teacher"}
	states        = []string{"NC", "WA", "ID", "MT"}
	firstNames    = []string{"Jennifer", "Stephanie", "Edward", "Jeremy"}
)

// Transactions 生成 n 行交易，其中 frauds 行为欺诈（is_fraud=1），位置由 seed 决定。
// 欺诈交易金额大、多发生在夜间、偏向线上类目，模型可以学到但并非完全可分。
func Transactions(n, frauds int, seed int64) *core.Dataset {
	rng := rand.New(rand.NewSource(seed))
	isFraud := make([]bool, n)
	for _, i := range rng.Perm(n)[:frauds] {
		isFraud[i] = true
	}

	base := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]core.Record, n)
	for i := 0; i < n; i++ {
		var (
			hour     int
			amt      float64
			category string
			label    int64
		)
		if isFraud[i] {
			hour = []int{22, 23, 0, 1, 2, 3}[rng.Intn(6)]
			amt = 300 + rng.Float64()*900
			category = fraudCategory[rng.Intn(len(fraudCategory))]
			label = 1
		} else {
			hour = 7 + rng.Intn(15)
			amt = 1 + rng.Float64()*180
			category = legitCategory[rng.Intn(len(legitCategory))]
		}
		ts := base.Add(time.Duration(rng.Intn(365))*24*time.Hour +
			time.Duration(hour)*time.Hour + time.Duration(rng.Intn(3600))*time.Second)
		dob := time.Date(1940+rng.Intn(60), time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)
		lat := 30 + rng.Float64()*15

		rows[i] = core.Record{
			"Unnamed: 0":            int64(i),
			"trans_date_trans_time": ts.Format("2006-01-02 15:04:05"),
			"cc_num":                int64(4000000000000000 + rng.Int63n(999999999)),
			"merchant":              merchants[rng.Intn(len(merchants))],
			"category":              category,
			"amt":                   float64(int64(amt*100)) / 100,
			"first":                 firstNames[rng.Intn(len(firstNames))],
			"last":                  "Banks",
			"gender":                []string{"F", "M"}[rng.Intn(2)],
			"street":                fmt.Sprintf("%d Main St", rng.Intn(999)),
			"city":                  "Springfield",
			"state":                 states[rng.Intn(len(states))],
			"zip":                   int64(10000 + rng.Intn(89999)),
			"lat":                   lat,
			"long":                  -120 + rng.Float64()*40,
			"city_pop":              int64(100 + rng.Intn(100000)),
			"job":                   jobs[rng.Intn(len(jobs))],
			"dob":                   dob.Format("2006-01-02"),
			"trans_num":             fmt.Sprintf("%032x", rng.Int63()),
			"unix_time":             ts.Unix(),
			"merch_lat":             lat + rng.Float64() - 0.5,
			"merch_long":            -120 + rng.Float64()*40,
			"is_fraud":              label,
		}
	}

	cols := make([]core.Column, len(columns))
	copy(cols, columns)
	return &core.Dataset{Columns: cols, Rows: rows}
}

// ScoringRequest 把一行原始交易转换为在线打分请求的字段集合，
// age 按 Clock 由 dob 计算。
func ScoringRequest(r core.Record) core.Record {
	req := core.Record{}
	for _, k := range []string{
		"amt", "gender", "merchant", "category", "job", "state", "zip",
		"lat", "long", "merch_lat", "merch_long", "city_pop", "unix_time",
	} {
		req[k] = r[k]
	}
	dob, err := time.Parse("2006-01-02", r["dob"].(string))
	if err != nil {
		panic(err)
	}
	days := int64(Clock.Sub(dob) / (24 * time.Hour))
	req["age"] = days / 365
	return req
}

// Labels 读取 is_fraud 列
func Labels(ds *core.Dataset) []int {
	y := make([]int, len(ds.Rows))
	for i, r := range ds.Rows {
		y[i] = int(r["is_fraud"].(int64))
	}
	return y
}

// Matrix 生成已编码的数值矩阵：第 0 列对正类有信号，其余为噪声
func Matrix(n, positives, nfeat int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	y := make([]int, n)
	for _, i := range rng.Perm(n)[:positives] {
		y[i] = 1
	}
	X := make([][]float64, n)
	for i := range X {
		x := make([]float64, nfeat)
		for j := range x {
			x[j] = rng.NormFloat64()
		}
		if y[i] == 1 {
			x[0] += 2.5
		}
		X[i] = x
	}
	return X, y
}
