package gateway

const imageFragment = `
fragment image on Image {
  url
  altText
  width
  height
}`

const seoFragment = `
fragment seo on SEO {
  description
  title
}`

const productFragment = `
fragment product on Product {
  id
  handle
  availableForSale
  title
  description
  descriptionHtml
  options { id name values }
  priceRange {
    maxVariantPrice { amount currencyCode }
    minVariantPrice { amount currencyCode }
  }
  variants(first: 250) {
    edges {
      node {
        id
        title
        availableForSale
        selectedOptions { name value }
        price { amount currencyCode }
        compareAtPrice { amount currencyCode }
      }
    }
  }
  featuredImage { ...image }
  images(first: 20) { edges { node { ...image } } }
  seo { ...seo }
  tags
  updatedAt
}` + imageFragment + seoFragment

const cartFragment = `
fragment cart on Cart {
  id
  checkoutUrl
  cost {
    subtotalAmount { amount currencyCode }
    totalAmount { amount currencyCode }
    totalTaxAmount { amount currencyCode }
  }
  lines(first: 100) {
    edges {
      node {
        id
        quantity
        cost { totalAmount { amount currencyCode } }
        merchandise {
          ... on ProductVariant {
            id
            title
            selectedOptions { name value }
            product { id handle title featuredImage { ...image } }
          }
        }
      }
    }
  }
  totalQuantity
}` + imageFragment

const userErrorsSelection = `userErrors { code field message }`

const createCartMutation = `
mutation createCart($lineItems: [CartLineInput!]) {
  cartCreate(input: { lines: $lineItems }) {
    cart { ...cart }
    ` + userErrorsSelection + `
  }
}` + cartFragment

const addToCartMutation = `
mutation addToCart($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart { ...cart }
    ` + userErrorsSelection + `
  }
}` + cartFragment

const editCartItemsMutation = `
mutation editCartItems($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) {
    cart { ...cart }
    ` + userErrorsSelection + `
  }
}` + cartFragment

const removeFromCartMutation = `
mutation removeFromCart($cartId: ID!, $lineIds: [ID!]!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) {
    cart { ...cart }
    ` + userErrorsSelection + `
  }
}` + cartFragment

const getCartQuery = `
query getCart($cartId: ID!) {
  cart(id: $cartId) { ...cart }
}` + cartFragment

const getProductQuery = `
query getProduct($handle: String!) {
  product(handle: $handle) { ...product }
}` + productFragment

const getProductsQuery = `
query getProducts($sortKey: ProductSortKeys, $reverse: Boolean, $query: String) {
  products(sortKey: $sortKey, reverse: $reverse, query: $query, first: 100) {
    edges { node { ...product } }
  }
}` + productFragment

const getProductRecommendationsQuery = `
query getProductRecommendations($productId: ID!) {
  productRecommendations(productId: $productId) { ...product }
}` + productFragment

const collectionFragment = `
fragment collection on Collection {
  handle
  title
  description
  seo { ...seo }
  updatedAt
}` + seoFragment

const getCollectionQuery = `
query getCollection($handle: String!) {
  collection(handle: $handle) { ...collection }
}` + collectionFragment

const getCollectionsQuery = `
query getCollections {
  collections(first: 100, sortKey: TITLE) {
    edges { node { ...collection } }
  }
}` + collectionFragment

const getCollectionProductsQuery = `
query getCollectionProducts($handle: String!, $sortKey: ProductCollectionSortKeys, $reverse: Boolean) {
  collection(handle: $handle) {
    products(sortKey: $sortKey, reverse: $reverse, first: 100) {
      edges { node { ...product } }
    }
  }
}` + productFragment

const getMenuQuery = `
query getMenu($handle: String!) {
  menu(handle: $handle) {
    items { title url }
  }
}`

const pageFragment = `
fragment page on Page {
  ... on Page {
    id
    title
    handle
    body
    bodySummary
    seo { ...seo }
    createdAt
    updatedAt
  }
}` + seoFragment

const getPageQuery = `
query getPage($handle: String!) {
  pageByHandle(handle: $handle) { ...page }
}` + pageFragment

const getPagesQuery = `
query getPages {
  pages(first: 100) {
    edges { node { ...page } }
  }
}` + pageFragment

const articleFields = `
  id
  title
  handle
  contentHtml
  excerpt
  publishedAt
  tags
  image { url altText width height }
  authorV2 { name email }
  seo { title description }
`

const getBlogsQuery = `
query getBlogs($first: Int!, $articlesFirst: Int!) {
  blogs(first: $first) {
    edges {
      node {
        id
        title
        handle
        seo { title description }
        articles(first: $articlesFirst, sortKey: PUBLISHED_AT, reverse: true) {
          edges { node {` + articleFields + `} }
        }
      }
    }
  }
}`

const getBlogQuery = `
query getBlog($handle: String!, $first: Int) {
  blogByHandle(handle: $handle) {
    id
    title
    handle
    seo { title description }
    articles(first: $first, sortKey: PUBLISHED_AT, reverse: true) {
      edges { node {` + articleFields + `} }
    }
  }
}`

const getArticleQuery = `
query getArticle($blogHandle: String!, $articleHandle: String!) {
  blogByHandle(handle: $blogHandle) {
    articleByHandle(handle: $articleHandle) {` + articleFields + `}
  }
}`

const getBlogArticlesQuery = `
query getBlogArticles($blogHandle: String!, $first: Int, $after: String, $sortKey: ArticleSortKeys, $reverse: Boolean) {
  blogByHandle(handle: $blogHandle) {
    articles(first: $first, after: $after, sortKey: $sortKey, reverse: $reverse) {
      edges { node {` + articleFields + `} }
      pageInfo { hasNextPage hasPreviousPage startCursor endCursor }
    }
  }
}`

const getArticlesByTagQuery = `
query getArticlesByTag($blogHandle: String!, $tag: String!, $first: Int) {
  blogByHandle(handle: $blogHandle) {
    articles(first: $first, query: $tag) {
      edges { node {` + articleFields + `} }
    }
  }
}`
