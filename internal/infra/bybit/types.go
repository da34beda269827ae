package bybit

// Wire types for the subset of the Bybit V5 API the engine touches.
// Everything beyond the minimal operation contract stays out of the core.

type restResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
}

type orderCreateRequest struct {
	Category  string `json:"category"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	OrderType string `json:"orderType"`
	Qty       string `json:"qty"`
	Price     string `json:"price"`
}

type orderCreateResponse struct {
	restResponse
	Result struct {
		OrderID string `json:"orderId"`
	} `json:"result"`
}

type orderCancelRequest struct {
	Category string `json:"category"`
	Symbol   string `json:"symbol"`
	OrderID  string `json:"orderId"`
}

type klineResponse struct {
	restResponse
	Result struct {
		// Each entry: [startTime, open, high, low, close, volume, turnover]
		List [][]string `json:"list"`
	} `json:"result"`
}

type instrumentsResponse struct {
	restResponse
	Result struct {
		List []struct {
			Symbol        string `json:"symbol"`
			LotSizeFilter struct {
				MinOrderQty string `json:"minOrderQty"`
				QtyStep     string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
		} `json:"list"`
	} `json:"result"`
}

type wsRequest struct {
	Op   string `json:"op"`
	Args []any  `json:"args,omitempty"`
}

type wsOrderMessage struct {
	Topic string `json:"topic"`
	Data  []struct {
		OrderID     string `json:"orderId"`
		Symbol      string `json:"symbol"`
		OrderStatus string `json:"orderStatus"`
		AvgPrice    string `json:"avgPrice"`
		CumExecQty  string `json:"cumExecQty"`
		UpdatedTime string `json:"updatedTime"`
	} `json:"data"`
}

// intervalFor maps engine timeframes to Bybit kline intervals.
var intervalFor = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"4h":  "240",
	"1d":  "D",
	"1w":  "W",
}

// rate limit retCode per Bybit docs
const retCodeRateLimit = 10006
