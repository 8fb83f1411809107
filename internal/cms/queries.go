package cms

// All events, not just upcoming ones: the calendar marks past days of the
// visible month too.
const eventsQuery = `
*[_type == "event"] | order(date asc) {
  _id, title, category, date, location,
  "imageUrl": image.asset->url
}`

const sermonsQuery = `
*[_type == "sermon"] | order(date desc) {
  _id, title, preacher, date,
  "seriesTitle": series->title,
  "imageUrl": coalesce(coverImage.asset->url, series->coverImage.asset->url),
  "fileUrl": audioFile.asset->url,
  youtubeUrl
}`

const currentSeriesQuery = `
*[_type == "series" && isCurrent == true][0] {
  _id, title, subtitle, description,
  "coverUrl": coverImage.asset->url,
  "recentSermons": *[_type == "sermon" && references(^._id)] | order(date desc)[0...2] {
    _id, title, preacher, date,
    "fileUrl": audioFile.asset->url,
    youtubeUrl
  }
}`

const testimoniesQuery = `
*[_type == "testimony"] | order(_createdAt desc) {
  _id, name, role, quote,
  "photoUrl": photo.asset->url
}`
