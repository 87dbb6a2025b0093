package response

// Download rates for WithResponseTime, in KB/s (negative by convention).
const (
	SpeedGPRS   = -56.0 / 8    // 7 KB/s
	SpeedEDGE   = -128.0 / 8   // 16 KB/s
	Speed3G     = -3200.0 / 8  // 400 KB/s
	Speed3GPlus = -7200.0 / 8  // 900 KB/s
	SpeedWifi   = -12000.0 / 8 // 1500 KB/s
)
