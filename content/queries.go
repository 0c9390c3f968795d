package content

const publicationFragment = `
fragment Publication on Publication {
  id
  title
  displayTitle
  descriptionSEO
  url
  isTeam
  favicon
  followersCount
  author {
    name
    username
    profilePicture
    followersCount
  }
  preferences {
    logo
  }
  ogMetaData {
    image
  }
}`

const postFragment = `
fragment Post on Post {
  id
  title
  brief
  slug
  url
  publishedAt
  readTimeInMinutes
  reactionCount
  responseCount
  coverImage {
    url
  }
  author {
    name
    profilePicture
  }
}`

const postsByPublicationQuery = `
query PostsByPublication($host: String!, $first: Int!, $after: String) {
  publication(host: $host) {
    ...Publication
    posts(first: $first, after: $after) {
      totalDocuments
      edges {
        node {
          ...Post
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}` + publicationFragment + postFragment

const morePostsByPublicationQuery = `
query MorePostsByPublication($host: String!, $first: Int!, $after: String) {
  publication(host: $host) {
    posts(first: $first, after: $after) {
      totalDocuments
      edges {
        node {
          ...Post
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}` + postFragment

const singlePostByPublicationQuery = `
query SinglePostByPublication($host: String!, $slug: String!) {
  publication(host: $host) {
    ...Publication
    post(slug: $slug) {
      ...Post
      content {
        html
      }
      tags {
        name
        slug
      }
      seo {
        title
        description
      }
      ogMetaData {
        image
      }
    }
  }
}` + publicationFragment + postFragment

const subscribeToNewsletterMutation = `
mutation SubscribeToNewsletter($input: SubscribeToNewsletterInput!) {
  subscribeToNewsletter(input: $input) {
    status
  }
}`
