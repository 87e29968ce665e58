package transform

// ReportMapping reshapes a Bid Manager performance report.
var ReportMapping = Mapping{
	Name: "report",
	Fields: []Field{
		{Target: "imported_at", Rule: IngestionDate},
		{Target: "reported_at", Source: "Date", Rule: DateNormalize},
		{Target: "advertiser_id", Rule: AdvertiserID},
		{Target: "insertion_order_id", Source: "Insertion Order ID", Rule: Integer},
		{Target: "line_item_id", Source: "Line Item ID", Rule: Integer},
		{Target: "line_item_status", Source: "Line Item Status", Rule: Identity},
		{Target: "device_type", Source: "Device Type", Rule: Identity},
		{Target: "impressions", Source: "Impressions", Rule: Identity},
		{Target: "billable_impressions", Source: "Billable Impressions", Rule: Identity},
		{Target: "clicks", Source: "Clicks", Rule: Identity},
		{Target: "click_rate", Source: "Click Rate (CTR)", Rule: Identity},
		{Target: "total_conversions", Source: "Total Conversions", Rule: Identity},
		{Target: "last_clicks", Source: "Last Clicks", Rule: Identity},
		{Target: "last_impressions", Source: "Last Impressions", Rule: Identity},
		{Target: "revenue_usd", Source: "Revenue (USD)", Rule: Identity},
		{Target: "media_cost_usd", Source: "Media Cost (USD)", Rule: Identity},
	},
}

// SDFMapping reshapes the line-item file of an SDF export.
var SDFMapping = Mapping{
	Name: "sdf",
	Fields: []Field{
		{Target: "line_item_id", Source: "Line Item Id", Rule: Integer},
		{Target: "insertion_order_id", Source: "Io Id", Rule: Integer},
		{Target: "line_item_type", Source: "Type", Rule: Identity},
		{Target: "pacing_type", Source: "Pacing", Rule: Identity},
		{Target: "bid_strategy_type", Source: "Bid Strategy Type", Rule: Identity},
		{Target: "budget_type", Source: "Budget Type", Rule: Identity},
		{Target: "is_audience_targeting", Source: "Audience Targeting - Include", Rule: ListPresence},
		{Target: "is_similar_audiences", Source: "Audience Targeting - Similar Audiences", Rule: FlagEquals},
		{Target: "is_affinity_inmarket", Source: "Affinity & In Market Targeting - Include", Rule: FlagEquals},
		{Target: "is_frequency_enabled", Source: "Frequency Enabled", Rule: FlagEquals},
		{Target: "active_view", Source: "Viewability Targeting Active View", Rule: Identity},
		{Target: "is_geography_targeting", Source: "Geography Targeting - Include", Rule: ListPresence},
		{Target: "is_language_targeting", Source: "Language Targeting - Include", Rule: ListPresence},
		{Target: "digital_content_labels", Source: "Digital Content Labels - Exclude", Rule: Identity},
		{Target: "brand_safety_sensitivity_setting", Source: "Brand Safety Sensitivity Setting", Rule: Identity},
		{Target: "is_site_targeting", Source: "Site Targeting - Include", Rule: ListPresence},
		{Target: "imported_at", Rule: IngestionDate},
		{Target: "advertiser_id", Rule: AdvertiserID},
	},
}
