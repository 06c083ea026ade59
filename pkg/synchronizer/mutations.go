package synchronizer

import "github.com/fiftyone-dev/appsync/pkg/gql"

// Session mutations.
var (
	SetSample = gql.NewMutation("setSample", `mutation setSample($subscription: String!, $groupId: String, $id: String) {
  setSample(subscription: $subscription, groupId: $groupId, id: $id)
}`)

	SetView = gql.NewMutation("setView", `mutation setView($subscription: String!, $view: BSONArray!, $savedViewSlug: String, $datasetName: String!) {
  setView(subscription: $subscription, view: $view, savedViewSlug: $savedViewSlug, datasetName: $datasetName) {
    datasetId
    view
  }
}`)

	SetDataset = gql.NewMutation("setDataset", `mutation setDataset($subscription: String!, $name: String) {
  setDataset(subscription: $subscription, name: $name)
}`)

	SetSpaces = gql.NewMutation("setSpaces", `mutation setSpaces($subscription: String!, $spaces: BSON!) {
  setSpaces(subscription: $subscription, spaces: $spaces)
}`)

	SetGroupSlice = gql.NewMutation("setGroupSlice", `mutation setGroupSlice($subscription: String!, $view: BSONArray!, $slice: String!) {
  setGroupSlice(subscription: $subscription, view: $view, slice: $slice)
}`)

	SetSelected = gql.NewMutation("setSelected", `mutation setSelected($subscription: String!, $selected: [String!]!) {
  setSelected(subscription: $subscription, selected: $selected)
}`)

	SetSelectedLabels = gql.NewMutation("setSelectedLabels", `mutation setSelectedLabels($subscription: String!, $selectedLabels: [SelectedLabel!]!) {
  setSelectedLabels(subscription: $subscription, selectedLabels: $selectedLabels)
}`)

	SetColorScheme = gql.NewMutation("setColorScheme", `mutation setColorScheme($subscription: String!, $colorScheme: ColorSchemeInput!) {
  setColorScheme(subscription: $subscription, colorScheme: $colorScheme) {
    colorPool
    colorBy
  }
}`)

	SetFieldVisibilityStage = gql.NewMutation("setFieldVisibilityStage", `mutation setFieldVisibilityStage($subscription: String!, $stage: BSON) {
  setFieldVisibilityStage(subscription: $subscription, stage: $stage)
}`)
)
