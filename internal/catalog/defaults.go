package catalog

import "github.com/Proton-105/storefront-bot/pkg/config"

// Default returns the stock price list used when the configuration carries none.
func Default() []config.OfferConfig {
	return []config.OfferConfig{
		{Category: "currency", Group: "PUBG UC", Key: "uc_60", Label: "60 UC", Price: 12000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_120", Label: "120 UC", Price: 24000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_180", Label: "180 UC", Price: 36000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_325", Label: "325 UC", Price: 58000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_385", Label: "385 UC", Price: 70000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_445", Label: "445 UC", Price: 82000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_660", Label: "660 UC", Price: 114000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_720", Label: "720 UC", Price: 125000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_985", Label: "985 UC", Price: 170000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_1320", Label: "1320 UC", Price: 228000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_1800", Label: "1800 UC", Price: 285000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_2125", Label: "2125 UC", Price: 345000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_2460", Label: "2460 UC", Price: 400000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_2785", Label: "2785 UC", Price: 460000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_3850", Label: "3850 UC", Price: 555000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_4175", Label: "4175 UC", Price: 610000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_4510", Label: "4510 UC", Price: 670000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_5650", Label: "5650 UC", Price: 855000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_8100", Label: "8100 UC", Price: 1100000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_9900", Label: "9900 UC", Price: 1385000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_11950", Label: "11950 UC", Price: 1660000},
		{Category: "currency", Group: "PUBG UC", Key: "uc_16200", Label: "16200 UC", Price: 2200000},
		{Category: "currency", Group: "PUBG PP", Key: "pp_1000", Label: "1000 PP", Price: 2520},
		{Category: "currency", Group: "PUBG PP", Key: "pp_3000", Label: "3000 PP", Price: 7560},
		{Category: "currency", Group: "PUBG PP", Key: "pp_5000", Label: "5000 PP", Price: 12600},
		{Category: "currency", Group: "PUBG PP", Key: "pp_10000", Label: "10000 PP", Price: 25200},
		{Category: "currency", Group: "PUBG PP", Key: "pp_20000", Label: "20000 PP", Price: 50400},
		{Category: "currency", Group: "PUBG PP", Key: "pp_50000", Label: "50000 PP", Price: 116676},
		{Category: "currency", Group: "PUBG PP", Key: "pp_100000", Label: "100000 PP", Price: 235242},
		{Category: "currency", Group: "Diamonds", Key: "dm_100+80", Label: "100+80 diamonds", Price: 14000},
		{Category: "currency", Group: "Diamonds", Key: "dm_310+249", Label: "310+249 diamonds", Price: 41000},
		{Category: "currency", Group: "Diamonds", Key: "dm_520+416", Label: "520+416 diamonds", Price: 72000},
		{Category: "currency", Group: "Diamonds", Key: "dm_1060+848", Label: "1060+848 diamonds", Price: 144000},
		{Category: "currency", Group: "Diamonds", Key: "dm_2180+1853", Label: "2180+1853 diamonds", Price: 274000},
		{Category: "currency", Group: "Diamonds", Key: "dm_5600+4760", Label: "5600+4760 diamonds", Price: 719000},
		{Category: "premium", Key: "1m", Label: "1 month", Price: 43000},
		{Category: "premium", Key: "3m", Label: "3 months", Price: 152000},
		{Category: "premium", Key: "6m", Label: "6 months", Price: 222000},
		{Category: "premium", Key: "12m", Label: "12 months", Price: 320000},
		{Category: "stars", Key: "15", Label: "15 Stars", Price: 3500},
		{Category: "stars", Key: "25", Label: "25 Stars", Price: 6000},
		{Category: "stars", Key: "50", Label: "50 Stars", Price: 12000},
		{Category: "stars", Key: "100", Label: "100 Stars", Price: 22000},
		{Category: "stars", Key: "150", Label: "150 Stars", Price: 31000},
		{Category: "stars", Key: "200", Label: "200 Stars", Price: 43000},
		{Category: "stars", Key: "300", Label: "300 Stars", Price: 63000},
	}
}
