package registry

// Defaults is the widget catalog seeded into every store. The code bodies
// mirror the built-in behaviour for readers; execution always dispatches on
// the name.
var Defaults = []Operation{
	{
		Name:        TrimByDate.DisplayName(),
		Description: "This widget trims rows from the CSV that correspond to yesterday's date.",
		Code: `def yesterday_trimmer(df):
    yesterday = (time.now() - time.hour * 24).format("2006-01-02")
    return [r for r in df if r.get("date") == None or str(r["date"])[:10] != yesterday]
`,
	},
	{
		Name:        DropColumns.DisplayName(),
		Description: "Drops specified columns from the CSV.",
		Code: `def column_dropper(df):
    return [{k: v for k, v in r.items() if k not in ("email", "website")} for r in df]
`,
	},
	{
		Name:        FilterDateRange.DisplayName(),
		Description: "Filters rows based on a date range.",
		Code: `def date_filter(df):
    keep = []
    for r in df:
        day = str(r.get("date"))[:10]
        if r.get("date") != None and day >= "2024-09-01" and day <= "2024-10-12":
            keep.append(r)
    return keep
`,
	},
	{
		Name:        UppercaseNames.DisplayName(),
		Description: "Converts first and last names to uppercase.",
		Code: `def uppercase_name_converter(df):
    for r in df:
        r["first name"] = r["first name"].upper()
        r["last name"] = r["last name"].upper()
    return df
`,
	},
	{
		Name:        FillNulls.DisplayName(),
		Description: "Fills null values with a default value.",
		Code: `def null_value_filler(df):
    return [{k: ("N/A" if v == None else v) for k, v in r.items()} for r in df]
`,
	},
	{
		Name:        DeduplicateRows.DisplayName(),
		Description: "Removes duplicate rows.",
		Code: `def row_deduplicator(df):
    seen = {}
    out = []
    for r in df:
        key = r["customer id"]
        if key not in seen:
            seen[key] = True
            out.append(r)
    return out
`,
	},
}
